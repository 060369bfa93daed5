// core/storage.go
package core

// Storage subsystem — IPFS HTTP gateway wrapper (one request per pin or
// fetch) with on-disk LRU cache.  Thread-safe and gas-aware.

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
	logrus "github.com/sirupsen/logrus"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// -----------------------------------------------------------------------------
// LRU on-disk cache implementation
// -----------------------------------------------------------------------------

const defaultCacheEntries = 10_000

func newDiskLRU(dir string, maxEntries int) (*diskLRU, error) {
	if maxEntries <= 0 {
		maxEntries = defaultCacheEntries
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &diskLRU{
		dir:   dir,
		max:   maxEntries,
		index: make(map[string]*diskEntry),
	}, nil
}

func (l *diskLRU) put(cid string, data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if ent, ok := l.index[cid]; ok {
		ent.at = time.Now()
		return nil // already cached
	}

	// Evict the least recently used entry if full.
	if len(l.index) >= l.max && len(l.order) > 0 {
		victim := 0
		for i, e := range l.order {
			if e.at.Before(l.order[victim].at) {
				victim = i
			}
		}
		oldest := l.order[victim]
		_ = os.Remove(oldest.path)
		delete(l.index, filepath.Base(oldest.path))
		l.order = append(l.order[:victim], l.order[victim+1:]...)
	}

	p := filepath.Join(l.dir, cid)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return err
	}
	ent := &diskEntry{path: p, size: int64(len(data)), at: time.Now()}
	l.index[cid] = ent
	l.order = append(l.order, ent)
	return nil
}

func (l *diskLRU) get(cid string) ([]byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ent, ok := l.index[cid]
	if !ok {
		return nil, false
	}
	ent.at = time.Now()

	b, err := os.ReadFile(ent.path)
	if err != nil {
		return nil, false
	}
	return b, true
}

// -----------------------------------------------------------------------------
// Storage struct
// -----------------------------------------------------------------------------

// NewStorage wires a Storage instance.
func NewStorage(cfg *StorageConfig, lg *logrus.Logger, led MeteredState) (*Storage, error) {
	if cfg == nil {
		return nil, errors.New("storage config nil")
	}
	cache, err := newDiskLRU(cfg.CacheDir, cfg.CacheSizeEntries)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	s := &Storage{
		logger: lg,
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.GatewayTimeout},
		cache:  cache,
		ledger: led,

		pinEndpoint: cfg.IPFSGateway + "/api/v0/add?pin=true",
		getEndpoint: cfg.IPFSGateway + "/ipfs/", // append CID
	}
	lg.Infof("storage: gateway %s cache %s", cfg.IPFSGateway, cfg.CacheDir)
	return s, nil
}

// -----------------------------------------------------------------------------
// Public API — Pin & Retrieve
// -----------------------------------------------------------------------------

// Pin uploads data to IPFS gateway, returns CID and byte-length.
func (s *Storage) Pin(ctx context.Context, data []byte, payer Address) (string, int64, error) {
	// Compute deterministic CID locally.
	encodedMH, err := mh.Sum(data, mh.SHA2_256, -1)
	if err != nil {
		return "", 0, err
	}
	c := cid.NewCidV1(cid.Raw, encodedMH)
	cidStr := c.String() // ← String() gives lower-case Base32-CIDv1

	// Already cached?
	if _, ok := s.cache.get(cidStr); ok {
		return cidStr, int64(len(data)), nil
	}

	// ----------------- pin via gateway -----------------
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.pinEndpoint, bytes.NewReader(data))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return "", 0, fmt.Errorf("gateway pin %d: %s", resp.StatusCode, string(b))
	}

	var meta struct {
		Hash string `json:"Hash"`
		Size string `json:"Size"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return "", 0, fmt.Errorf("decode: %w", err)
	}
	if meta.Hash != cidStr {
		return "", 0, errors.New("cid mismatch between local and gateway")
	}

	// Cache locally (best-effort).
	_ = s.cache.put(cidStr, data)

	// Charge gas if ledger provided.
	if s.ledger != nil {
		if err := s.ledger.ChargeStorageRent(payer, int64(len(data))); err != nil {
			s.logger.Printf("storage rent charge failed: %v", err)
		}
	}

	s.logger.Printf("pinned CID %s (%d bytes)", cidStr, len(data))
	return cidStr, int64(len(data)), nil
}

// Retrieve returns data for CID (cache → gateway fallback).
func (s *Storage) Retrieve(ctx context.Context, cidStr string) ([]byte, error) {
	if b, ok := s.cache.get(cidStr); ok {
		return b, nil
	}

	url := s.getEndpoint + cidStr
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 128))
		return nil, fmt.Errorf("gateway fetch %d: %s", resp.StatusCode, string(b))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	_ = s.cache.put(cidStr, data) // best-effort

	s.logger.Printf("retrieved CID %s (%d bytes)", cidStr, len(data))
	return data, nil
}

func (s *Storage) vmPin(data []byte, caller Address) (string, int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.GatewayTimeout)
	defer cancel()
	return s.Pin(ctx, data, caller)
}
