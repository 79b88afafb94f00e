// Package pipeline parses and classifies raw WAF log lines over a bounded
// pool of chunk workers and merges their groups.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Wikid82/wafwatch/internal/classifier"
	"github.com/Wikid82/wafwatch/internal/logger"
	"github.com/Wikid82/wafwatch/internal/models"
	"github.com/Wikid82/wafwatch/internal/util"
	"github.com/Wikid82/wafwatch/internal/waflog"
)

const (
	DefaultChunkSize      = 500
	DefaultMaxConcurrency = 2
)

var ErrChunkPanic = errors.New("chunk worker panicked")

// ChunkError wraps the failure of one chunk.
type ChunkError struct {
	Index int
	Err   error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("chunk %d: %v", e.Index, e.Err)
}

func (e *ChunkError) Unwrap() error { return e.Err }

// Result is the merged output of one Process call.
type Result struct {
	Groups       models.FindingGroups
	Lines        int
	Chunks       int
	Parsed       int
	Malformed    int
	Unclassified int
	FailedChunks []*ChunkError
}

type chunkResult struct {
	groups       models.FindingGroups
	parsed       int
	malformed    int
	unclassified int
}

// chunkFunc processes one chunk into a complete group map.
type chunkFunc func(ctx context.Context, index int, lines [][]byte) (chunkResult, error)

type Engine struct {
	ChunkSize      int
	MaxConcurrency int
	// FailFast aborts the run on the first failed chunk. When false the
	// failed chunk is skipped and reported in Result.FailedChunks.
	FailFast bool

	classifier *classifier.Classifier
	log        *logrus.Entry
	work       chunkFunc
}

func NewEngine(c *classifier.Classifier, log *logrus.Logger) *Engine {
	if c == nil {
		c = classifier.New(nil, log)
	}
	e := &Engine{
		ChunkSize:      DefaultChunkSize,
		MaxConcurrency: DefaultMaxConcurrency,
		classifier:     c,
		log:            logger.For(log, "pipeline"),
	}
	e.work = e.processChunk
	return e
}

// Process splits lines into chunks and runs at most MaxConcurrency of them at
// a time. Groups are merged in chunk order once every worker has finished.
func (e *Engine) Process(ctx context.Context, lines [][]byte) (*Result, error) {
	chunks := split(lines, e.chunkSize())
	results := make([]chunkResult, len(chunks))
	failures := make([]*ChunkError, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxConcurrency())

	for i, chunk := range chunks {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res, err := e.safeRun(gctx, i, chunk)
			if err != nil {
				var chunkErr *ChunkError
				if !errors.As(err, &chunkErr) {
					chunkErr = &ChunkError{Index: i, Err: err}
				}
				failures[i] = chunkErr
				if e.FailFast {
					return chunkErr
				}
				e.log.WithError(err).WithField("chunk", i).Warn("skipping failed chunk")
				return nil
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := &Result{Groups: models.NewFindingGroups(), Lines: len(lines), Chunks: len(chunks)}
	for i, res := range results {
		if failures[i] != nil {
			out.FailedChunks = append(out.FailedChunks, failures[i])
			continue
		}
		out.Groups.Merge(res.groups)
		out.Parsed += res.parsed
		out.Malformed += res.malformed
		out.Unclassified += res.unclassified
	}

	e.log.WithFields(logrus.Fields{
		"lines":         out.Lines,
		"chunks":        out.Chunks,
		"findings":      out.Groups.Total(),
		"malformed":     out.Malformed,
		"unclassified":  out.Unclassified,
		"failed_chunks": len(out.FailedChunks),
	}).Info("processed waf log records")
	return out, nil
}

func (e *Engine) safeRun(ctx context.Context, index int, lines [][]byte) (res chunkResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ChunkError{Index: index, Err: fmt.Errorf("%w: %v", ErrChunkPanic, r)}
		}
	}()
	return e.work(ctx, index, lines)
}

func (e *Engine) processChunk(ctx context.Context, index int, lines [][]byte) (chunkResult, error) {
	res := chunkResult{groups: models.NewFindingGroups()}
	for _, line := range lines {
		if err := ctx.Err(); err != nil {
			return chunkResult{}, &ChunkError{Index: index, Err: err}
		}
		finding, err := waflog.Parse(line)
		if err != nil {
			res.malformed++
			e.log.WithError(err).WithField("line", util.SanitizeForLog(string(line))).Debug("skipping malformed record")
			continue
		}
		res.parsed++
		outcome := e.classifier.Classify(finding, res.groups)
		res.unclassified += outcome.Unclassified
	}
	return res, nil
}

func (e *Engine) chunkSize() int {
	if e.ChunkSize <= 0 {
		return DefaultChunkSize
	}
	return e.ChunkSize
}

func (e *Engine) maxConcurrency() int {
	if e.MaxConcurrency <= 0 {
		return DefaultMaxConcurrency
	}
	return e.MaxConcurrency
}

func split(lines [][]byte, size int) [][][]byte {
	chunks := make([][][]byte, 0, (len(lines)+size-1)/size)
	for start := 0; start < len(lines); start += size {
		end := min(start+size, len(lines))
		chunks = append(chunks, lines[start:end])
	}
	return chunks
}
