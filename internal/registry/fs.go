package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const metaFileName = "bot.json"

// FS is the filesystem registry backend: root/<botName>/bot.json.
// Single-process only; a mutex serializes the read-modify-write cycles.
type FS struct {
	mu   sync.Mutex
	root string
}

func NewFS(root string) (*FS, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create session root: %w", err)
	}
	return &FS{root: root}, nil
}

// metaRecord is the on-disk shape; Record's json tags hide the seed from
// API responses, so the file format needs its own struct.
type metaRecord struct {
	BotName        string    `json:"botName"`
	OwnerNumber    string    `json:"ownerNumber"`
	SessionSeed    string    `json:"sessionSeed"`
	Status         Status    `json:"status"`
	LastActivityAt time.Time `json:"lastActivityAt"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (r *FS) path(botName string) string {
	return filepath.Join(r.root, botName, metaFileName)
}

func (r *FS) read(botName string) (metaRecord, error) {
	raw, err := os.ReadFile(r.path(botName))
	if err != nil {
		if os.IsNotExist(err) {
			return metaRecord{}, ErrNotFound
		}
		return metaRecord{}, fmt.Errorf("read metadata for %s: %w", botName, err)
	}
	var m metaRecord
	if err := json.Unmarshal(raw, &m); err != nil {
		return metaRecord{}, fmt.Errorf("decode metadata for %s: %w", botName, err)
	}
	return m, nil
}

func (r *FS) write(m metaRecord) error {
	dir := filepath.Join(r.root, m.BotName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create session dir for %s: %w", m.BotName, err)
	}
	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata for %s: %w", m.BotName, err)
	}
	tmp, err := os.CreateTemp(dir, metaFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp metadata file: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write metadata for %s: %w", m.BotName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close metadata file: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path(m.BotName)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("commit metadata for %s: %w", m.BotName, err)
	}
	return nil
}

func (r *FS) Create(rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.read(rec.BotName); err == nil {
		return ErrExists
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	m := metaRecord{
		BotName:        rec.BotName,
		OwnerNumber:    rec.OwnerNumber,
		SessionSeed:    rec.SessionSeed,
		Status:         rec.Status,
		LastActivityAt: rec.LastActivityAt,
		CreatedAt:      rec.CreatedAt,
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	return r.write(m)
}

func (r *FS) Upsert(rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := metaRecord{
		BotName:        rec.BotName,
		OwnerNumber:    rec.OwnerNumber,
		SessionSeed:    rec.SessionSeed,
		Status:         rec.Status,
		LastActivityAt: rec.LastActivityAt,
		CreatedAt:      rec.CreatedAt,
	}
	if prev, err := r.read(rec.BotName); err == nil {
		m.CreatedAt = prev.CreatedAt
	} else if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	return r.write(m)
}

func (r *FS) Get(botName string) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, err := r.read(botName)
	if err != nil {
		return Record{}, err
	}
	return Record(m), nil
}

func (r *FS) List() ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := os.ReadDir(r.root)
	if err != nil {
		return nil, fmt.Errorf("list session root: %w", err)
	}
	var recs []Record
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		m, err := r.read(e.Name())
		if err != nil {
			// A dir can hold credentials but no metadata yet; skip it.
			continue
		}
		recs = append(recs, Record(m))
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].BotName < recs[j].BotName })
	return recs, nil
}

func (r *FS) Remove(botName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.Remove(r.path(botName)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove metadata for %s: %w", botName, err)
	}
	os.Remove(filepath.Join(r.root, botName)) // prunes the dir if now empty
	return nil
}

func (r *FS) SetStatus(botName string, status Status, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, err := r.read(botName)
	if err != nil {
		return err
	}
	m.Status = status
	m.LastActivityAt = at
	return r.write(m)
}
