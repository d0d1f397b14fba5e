package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

const (
	// Retry configuration for transient backend errors.
	maxRetries     = 3
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
	// HTTP client timeout.
	httpTimeout = 30 * time.Second
)

// Remote is a Store backed by a plain HTTP document service. Each document is
// one object under /docs/<name>; a single PUT is atomic at document
// granularity, which is all the latest-pointer convention needs.
//
// Transient failures are retried with backoff here, in the adapter, so the
// core never implements retry policy.
type Remote struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
}

// remoteEntry is one item in the service's listing response.
type remoteEntry struct {
	Name     string    `json:"name"`
	Modified time.Time `json:"modified"`
}

// NewRemote creates a Remote store for the given service base URL. The token
// is sent as a bearer credential when non-empty.
func NewRemote(baseURL, authToken string) *Remote {
	return &Remote{
		baseURL:   strings.TrimRight(baseURL, "/"),
		authToken: authToken,
		httpClient: &http.Client{
			Timeout: httpTimeout,
		},
	}
}

// Put uploads the document, retrying transient failures.
func (r *Remote) Put(name string, content []byte) error {
	err := retry.Do(func() error {
		req, err := http.NewRequest(http.MethodPut, r.docURL(name), bytes.NewReader(content))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		return r.do(req, nil)
	}, retry.Attempts(maxRetries), retry.Delay(initialBackoff), retry.MaxDelay(maxBackoff))
	if err != nil {
		return fmt.Errorf("failed to put document %s: %w", name, err)
	}
	return nil
}

// Get downloads a document. A 404 maps to ErrNotFound and is not retried.
func (r *Remote) Get(name string) ([]byte, error) {
	var content []byte
	err := retry.Do(func() error {
		req, err := http.NewRequest(http.MethodGet, r.docURL(name), nil)
		if err != nil {
			return err
		}
		return r.do(req, &content)
	}, retry.Attempts(maxRetries), retry.Delay(initialBackoff), retry.MaxDelay(maxBackoff),
		retry.RetryIf(func(err error) bool { return !errors.Is(err, ErrNotFound) }))
	if err != nil {
		// retry.Do reports an aggregate of the attempts, so the sentinel has
		// to be unwrapped rather than compared directly.
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document %s: %w", name, err)
	}
	return content, nil
}

// GetLatest reads a machine's latest snapshot document.
func (r *Remote) GetLatest(machine string) ([]byte, error) {
	return r.Get(LatestName(machine))
}

// ListLatestMachines lists latest pointers on the service.
func (r *Remote) ListLatestMachines() ([]string, error) {
	entries, err := r.list("")
	if err != nil {
		return nil, err
	}

	var machines []string
	for _, entry := range entries {
		if machine, ok := MachineFromLatest(entry.Name); ok {
			machines = append(machines, machine)
		}
	}
	sort.Strings(machines)
	return machines, nil
}

// ListTimestamped returns the machine's historical snapshots, oldest first.
func (r *Remote) ListTimestamped(machine string) ([]TimestampedDoc, error) {
	docs, _, err := r.timestampedFor(machine, true)
	return docs, err
}

// Prune deletes the machine's timestamped snapshots older than the cutoff.
func (r *Remote) Prune(machine string, olderThan time.Time) (int, error) {
	_, names, err := r.timestampedFor(machine, false)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, name := range names {
		ts, _ := SnapshotTimestamp(baseName(name))
		if !ts.Before(olderThan) {
			continue
		}
		if err := r.delete(name); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

// timestampedFor lists the machine's snapshot documents in the service root
// and the archive folder. When withContent is set each document body is
// fetched as well.
func (r *Remote) timestampedFor(machine string, withContent bool) ([]TimestampedDoc, []string, error) {
	safe := SafeMachineName(machine)

	// Listing names are full paths relative to the store root, e.g.
	// "old scans/studio-a__20260301-120000.json".
	var docs []TimestampedDoc
	var names []string
	for _, prefix := range []string{"", ArchiveDirName + "/"} {
		entries, err := r.list(prefix)
		if err != nil {
			return nil, nil, err
		}
		for _, entry := range entries {
			base := baseName(entry.Name)
			ts, ok := SnapshotTimestamp(base)
			if !ok || snapshotMachine(base) != safe {
				continue
			}
			if prefix == "" && strings.Contains(entry.Name, "/") {
				continue // root listing may include archived docs, archive pass covers them
			}
			names = append(names, entry.Name)
			doc := TimestampedDoc{Name: base, Timestamp: ts}
			if withContent {
				content, err := r.Get(entry.Name)
				if err != nil {
					if errors.Is(err, ErrNotFound) {
						continue // pruned between list and fetch
					}
					return nil, nil, err
				}
				doc.Content = content
			}
			docs = append(docs, doc)
		}
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Timestamp.Before(docs[j].Timestamp) })
	sort.Strings(names)
	return docs, names, nil
}

// list fetches the document listing under a prefix, retrying transient
// failures.
func (r *Remote) list(prefix string) ([]remoteEntry, error) {
	listURL := r.baseURL + "/docs?prefix=" + url.QueryEscape(prefix)

	var entries []remoteEntry
	err := retry.Do(func() error {
		req, err := http.NewRequest(http.MethodGet, listURL, nil)
		if err != nil {
			return err
		}
		var body []byte
		if err := r.do(req, &body); err != nil {
			return err
		}
		entries = entries[:0]
		return json.Unmarshal(body, &entries)
	}, retry.Attempts(maxRetries), retry.Delay(initialBackoff), retry.MaxDelay(maxBackoff))
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return entries, nil
}

func (r *Remote) delete(name string) error {
	err := retry.Do(func() error {
		req, err := http.NewRequest(http.MethodDelete, r.docURL(name), nil)
		if err != nil {
			return err
		}
		err = r.do(req, nil)
		if errors.Is(err, ErrNotFound) {
			return nil // already gone
		}
		return err
	}, retry.Attempts(maxRetries), retry.Delay(initialBackoff), retry.MaxDelay(maxBackoff))
	if err != nil {
		return fmt.Errorf("failed to delete document %s: %w", name, err)
	}
	return nil
}

// do executes the request, applying auth and mapping status codes. When out
// is non-nil the response body is stored into it.
func (r *Remote) do(req *http.Request, out *[]byte) error {
	if r.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+r.authToken)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("backend returned status %d", resp.StatusCode)
	}

	if out != nil {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		*out = body
	}
	return nil
}

// docURL builds the document URL, escaping each path segment (the archive
// folder name contains a space).
func (r *Remote) docURL(name string) string {
	segments := strings.Split(name, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return r.baseURL + "/docs/" + strings.Join(segments, "/")
}

func baseName(name string) string {
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		return name[idx+1:]
	}
	return name
}
