package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-pkgz/lgr"

	"github.com/denius89/news-ai-bot-sub002/pkg/domain"
)

// sourceMaintenance compares the catalogue with the previous run and appends
// added and removed urls to rolling logs
type sourceMaintenance struct {
	logDir    string
	statePath string
}

type knownSource struct {
	Source string `json:"source"`
	URL    string `json:"url"`
}

func newSourceMaintenance(logDir, statePath string) *sourceMaintenance {
	return &sourceMaintenance{logDir: logDir, statePath: statePath}
}

// Record logs the difference with the previous list and stores the current one.
// The first run only stores the list.
func (m *sourceMaintenance) Record(sources []domain.Source) error {
	current := map[string]string{}
	for _, s := range sources {
		if _, ok := current[s.URL]; !ok {
			current[s.URL] = s.String()
		}
	}

	prev, found, err := m.load()
	if err != nil {
		return err
	}
	if found {
		var added, removed []knownSource
		for u, name := range current {
			if _, ok := prev[u]; !ok {
				added = append(added, knownSource{Source: name, URL: u})
			}
		}
		for u, name := range prev {
			if _, ok := current[u]; !ok {
				removed = append(removed, knownSource{Source: name, URL: u})
			}
		}
		if err := m.appendLog("sources_added.log", "added", added); err != nil {
			return err
		}
		if err := m.appendLog("sources_removed.log", "removed", removed); err != nil {
			return err
		}
	}
	return m.save(current)
}

func (m *sourceMaintenance) load() (map[string]string, bool, error) {
	data, err := os.ReadFile(m.statePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", m.statePath, err)
	}
	var list []knownSource
	if err := json.Unmarshal(data, &list); err != nil {
		lgr.Printf("[WARN] ignore corrupted %s: %v", m.statePath, err)
		return nil, false, nil
	}
	res := make(map[string]string, len(list))
	for _, k := range list {
		res[k.URL] = k.Source
	}
	return res, true, nil
}

func (m *sourceMaintenance) save(current map[string]string) error {
	list := make([]knownSource, 0, len(current))
	for u, name := range current {
		list = append(list, knownSource{Source: name, URL: u})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].URL < list[j].URL })
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sources: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(m.statePath), 0o750); err != nil {
		return fmt.Errorf("make state dir: %w", err)
	}
	tmp := m.statePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	return os.Rename(tmp, m.statePath)
}

func (m *sourceMaintenance) appendLog(name, action string, entries []knownSource) error {
	if len(entries) == 0 {
		return nil
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].URL < entries[j].URL })
	if err := os.MkdirAll(m.logDir, 0o750); err != nil {
		return fmt.Errorf("make log dir: %w", err)
	}
	path := filepath.Join(m.logDir, name)
	fh, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600) //nolint:gosec // path built from config
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer fh.Close()

	l := lgr.New(lgr.Out(fh), lgr.Err(fh), lgr.Msec)
	for _, e := range entries {
		l.Logf("[INFO] %s %s %s", action, e.Source, e.URL)
	}
	lgr.Printf("[INFO] %d sources %s since last run, see %s", len(entries), action, path)
	return nil
}
