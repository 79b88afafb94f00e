// Package ingest downloads the WAF log objects of one hour and splits them into records.
package ingest

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/sirupsen/logrus"

	"github.com/Wikid82/wafwatch/internal/logger"
	"github.com/Wikid82/wafwatch/internal/storage"
)

var gzipMagic = []byte{0x1f, 0x8b}

type LogFetcher struct {
	store  storage.BlobStore
	layout storage.Layout
	log    *logrus.Entry
}

// Batch is the set of raw records fetched for one run.
type Batch struct {
	Prefix  string
	Objects int
	Failed  int
	Lines   [][]byte
}

func NewLogFetcher(store storage.BlobStore, layout storage.Layout, log *logrus.Logger) *LogFetcher {
	return &LogFetcher{store: store, layout: layout, log: logger.For(log, "ingest")}
}

// Fetch reads every log object of the hour before now. Listing or download
// failures are logged and yield fewer lines rather than an error; only a
// cancelled context is returned.
func (f *LogFetcher) Fetch(ctx context.Context, now time.Time) (*Batch, error) {
	batch := &Batch{Prefix: f.layout.LogsPrefix(now)}
	objects, err := f.store.List(ctx, batch.Prefix)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		f.log.WithError(err).WithField("prefix", batch.Prefix).Error("failed to list waf log objects")
		return batch, nil
	}

	for _, obj := range objects {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := f.store.Get(ctx, obj.Key)
		if err != nil {
			batch.Failed++
			f.log.WithError(err).WithField("key", obj.Key).Error("failed to download waf log object")
			continue
		}
		lines, err := SplitLines(data)
		if err != nil {
			batch.Failed++
			f.log.WithError(err).WithField("key", obj.Key).Error("failed to decode waf log object")
			continue
		}
		batch.Objects++
		batch.Lines = append(batch.Lines, lines...)
	}

	f.log.WithFields(logrus.Fields{
		"prefix":  batch.Prefix,
		"objects": batch.Objects,
		"failed":  batch.Failed,
		"lines":   len(batch.Lines),
	}).Info("fetched waf logs")
	return batch, nil
}

// SplitLines returns the non-empty lines of data, gunzipping it first when
// it carries the gzip header.
func SplitLines(data []byte) ([][]byte, error) {
	var r io.Reader = bytes.NewReader(data)
	if bytes.HasPrefix(data, gzipMagic) {
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("open gzip stream: %w", err)
		}
		defer zr.Close()
		r = zr
	}

	var lines [][]byte
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadBytes('\n')
		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			lines = append(lines, trimmed)
		}
		if errors.Is(err, io.EOF) {
			return lines, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read log lines: %w", err)
		}
	}
}
