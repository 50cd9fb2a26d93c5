package backend

import "github.com/coreos/go-systemd/v22/sdjournal"

type Journal struct {
	journal *sdjournal.Journal
}

// OpenJournal opens the local systemd journal.
func OpenJournal() (Logger, error) {
	j, err := sdjournal.NewJournal()
	if err != nil {
		return nil, err
	}
	return &Journal{journal: j}, nil
}

func (j *Journal) AddMatch(match string) error {
	return j.journal.AddMatch(match)
}

func (j *Journal) Close() error {
	return j.journal.Close()
}

func (j *Journal) GetEntry() (*sdjournal.JournalEntry, error) {
	return j.journal.GetEntry()
}

func (j *Journal) Next() (uint64, error) {
	return j.journal.Next()
}
