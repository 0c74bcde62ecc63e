package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime"
	"sync"

	"github.com/MeKo-Tech/codescan/internal/barcode"
	"github.com/MeKo-Tech/codescan/internal/geometry"
)

// ParallelConfig holds configuration for decoding images in parallel.
type ParallelConfig struct {
	MaxWorkers       int // 0 = runtime.NumCPU()
	Options          barcode.Options
	ProgressCallback ProgressCallback
}

// DecodedImage is the decoder output for one image, ready to be fed to a
// session as a frame.
type DecodedImage struct {
	Index int
	Size  geometry.Size
	Raws  []barcode.RawDetection
	Err   error
}

type decodeJob struct {
	index int
	image image.Image
}

// DecodeImages decodes images with be using a worker pool. Results keep the
// input order; per-image failures are reported in DecodedImage.Err and do
// not stop the batch.
func DecodeImages(ctx context.Context, be barcode.Backend, images []image.Image, cfg ParallelConfig) ([]DecodedImage, error) {
	if len(images) == 0 {
		return nil, errors.New("no images provided")
	}
	if be == nil {
		return nil, barcode.ErrNoBackend
	}
	workers := cfg.MaxWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, len(images))
	progress := cfg.ProgressCallback
	if progress == nil {
		progress = NoOpProgressCallback{}
	}

	progress.OnStart(len(images))
	defer progress.OnComplete()

	jobs := make(chan decodeJob)
	results := make(chan DecodedImage, len(images))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				raws, size, err := barcode.DecodeFrame(ctx, be, job.image, cfg.Options)
				results <- DecodedImage{Index: job.index, Size: size, Raws: raws, Err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, img := range images {
			select {
			case jobs <- decodeJob{index: i, image: img}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([]DecodedImage, len(images))
	done := 0
	for r := range results {
		ordered[r.Index] = r
		done++
		if r.Err != nil {
			progress.OnError(r.Index, r.Err)
		}
		progress.OnProgress(done, len(images))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if done != len(images) {
		return nil, fmt.Errorf("decoded %d of %d images", done, len(images))
	}
	return ordered, nil
}
