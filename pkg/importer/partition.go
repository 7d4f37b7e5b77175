package importer

import "github.com/trellishq/trellis/pkg/models"

// UpdateCandidate pairs an incoming record with the existing contact it matched.
type UpdateCandidate struct {
	Record    models.ImportRecord
	ContactID string
}

// Partition is the classification of a batch before commit.
type Partition struct {
	Create  []models.ImportRecord
	Update  []UpdateCandidate
	Skipped int
}

// BuildKeySet collects the union of dedup keys across usable records, for one
// batched lookup instead of a query per candidate.
func BuildKeySet(records []models.ImportRecord) models.ContactKeySet {
	var keys models.ContactKeySet
	for _, rec := range records {
		if !rec.HasUsableName() {
			continue
		}
		if rec.SourceName != nil && *rec.SourceName != "" {
			keys.SourceNames = append(keys.SourceNames, *rec.SourceName)
		}
		if rec.Email != nil && *rec.Email != "" {
			keys.Emails = append(keys.Emails, *rec.Email)
		}
		if rec.Phone != nil && *rec.Phone != "" {
			keys.Phones = append(keys.Phones, *rec.Phone)
		}
	}
	return keys
}

// hasDedupKeys reports whether the record carries any key a contact lookup can
// match on.
func hasDedupKeys(rec models.ImportRecord) bool {
	return (rec.SourceName != nil && *rec.SourceName != "") ||
		(rec.Email != nil && *rec.Email != "") ||
		(rec.Phone != nil && *rec.Phone != "")
}

// PartitionRecords classifies each record against the existing contacts and
// against earlier records in the same batch. A record matching an existing
// contact by source name, email, or phone goes to the update cohort when
// overrideExisting is set, otherwise it is skipped. Keys contributed by a
// create-cohort record are claimed before the next record is evaluated, so two
// duplicates inside one batch cannot both classify as new.
func PartitionRecords(records []models.ImportRecord, existing []models.Contact, overrideExisting bool) Partition {
	bySourceName := make(map[string]string)
	byEmail := make(map[string]string)
	byPhone := make(map[string]string)
	for _, c := range existing {
		if c.SourceName != nil && *c.SourceName != "" {
			bySourceName[*c.SourceName] = c.ID
		}
		if c.Email != nil && *c.Email != "" {
			byEmail[*c.Email] = c.ID
		}
		if c.Phone != nil && *c.Phone != "" {
			byPhone[*c.Phone] = c.ID
		}
	}

	seenSourceNames := make(map[string]bool)
	seenEmails := make(map[string]bool)
	seenPhones := make(map[string]bool)

	var part Partition
	for _, rec := range records {
		if !rec.HasUsableName() {
			part.Skipped++
			continue
		}

		if id, ok := matchExisting(rec, bySourceName, byEmail, byPhone); ok {
			if overrideExisting {
				part.Update = append(part.Update, UpdateCandidate{Record: rec, ContactID: id})
			} else {
				part.Skipped++
			}
			continue
		}

		if matchSeen(rec, seenSourceNames, seenEmails, seenPhones) {
			part.Skipped++
			continue
		}

		if rec.SourceName != nil && *rec.SourceName != "" {
			seenSourceNames[*rec.SourceName] = true
		}
		if rec.Email != nil && *rec.Email != "" {
			seenEmails[*rec.Email] = true
		}
		if rec.Phone != nil && *rec.Phone != "" {
			seenPhones[*rec.Phone] = true
		}
		part.Create = append(part.Create, rec)
	}

	return part
}

func matchExisting(rec models.ImportRecord, bySourceName, byEmail, byPhone map[string]string) (string, bool) {
	if rec.SourceName != nil && *rec.SourceName != "" {
		if id, ok := bySourceName[*rec.SourceName]; ok {
			return id, true
		}
	}
	if rec.Phone != nil && *rec.Phone != "" {
		if id, ok := byPhone[*rec.Phone]; ok {
			return id, true
		}
	}
	if rec.Email != nil && *rec.Email != "" {
		if id, ok := byEmail[*rec.Email]; ok {
			return id, true
		}
	}
	return "", false
}

func matchSeen(rec models.ImportRecord, seenSourceNames, seenEmails, seenPhones map[string]bool) bool {
	if rec.SourceName != nil && *rec.SourceName != "" && seenSourceNames[*rec.SourceName] {
		return true
	}
	if rec.Phone != nil && *rec.Phone != "" && seenPhones[*rec.Phone] {
		return true
	}
	if rec.Email != nil && *rec.Email != "" && seenEmails[*rec.Email] {
		return true
	}
	return false
}
