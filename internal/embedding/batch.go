package embedding

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"intentcore/internal/logging"
)

// EmbedChunked embeds texts in fixed-size chunks to respect provider request
// limits. Results are returned in the order of the input texts regardless of
// how chunks complete: each chunk writes into its own slice segment, keyed by
// the chunk's starting index.
//
// parallelism <= 1 runs chunks sequentially, which bounds provider rate-limit
// exposure. Higher values fan chunks out concurrently; ordering is still
// preserved by index.
func EmbedChunked(ctx context.Context, engine Engine, texts []string, chunkSize, parallelism int) ([][]float32, error) {
	if chunkSize <= 0 {
		chunkSize = 100
	}
	if len(texts) == 0 {
		return nil, nil
	}

	timer := logging.StartTimer(logging.CategoryEmbedding, "EmbedChunked")
	defer timer.StopWithInfo()
	logging.Embedding("Embedding %d texts in chunks of %d (parallelism=%d)", len(texts), chunkSize, parallelism)

	results := make([][]float32, len(texts))

	if parallelism <= 1 {
		for start := 0; start < len(texts); start += chunkSize {
			end := start + chunkSize
			if end > len(texts) {
				end = len(texts)
			}
			vecs, err := engine.EmbedBatch(ctx, texts[start:end])
			if err != nil {
				return nil, fmt.Errorf("embedding chunk at offset %d failed: %w", start, err)
			}
			if len(vecs) != end-start {
				return nil, fmt.Errorf("embedding chunk at offset %d returned %d vectors, want %d", start, len(vecs), end-start)
			}
			copy(results[start:end], vecs)
		}
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)

	for start := 0; start < len(texts); start += chunkSize {
		end := start + chunkSize
		if end > len(texts) {
			end = len(texts)
		}
		start, end := start, end
		g.Go(func() error {
			vecs, err := engine.EmbedBatch(gctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("embedding chunk at offset %d failed: %w", start, err)
			}
			if len(vecs) != end-start {
				return fmt.Errorf("embedding chunk at offset %d returned %d vectors, want %d", start, len(vecs), end-start)
			}
			copy(results[start:end], vecs)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
