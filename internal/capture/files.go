package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"dhwani/pkg/audioconv"
)

var ErrNoFile = errors.New("no voice note queued")

// maxNoteSamples caps a voice note at two minutes.
const maxNoteSamples = 120 * audioconv.TargetRate

// Files is a Source that decodes queued voice-note files in order.
type Files struct {
	mu    sync.Mutex
	queue []string
}

func NewFiles() *Files {
	return &Files{}
}

// Enqueue adds a file to be used by the next capture.
func (f *Files) Enqueue(path string) error {
	st, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("voice note: %w", err)
	}
	if st.IsDir() {
		return fmt.Errorf("voice note: %s is a directory", path)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, path)
	return nil
}

func (f *Files) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

func (f *Files) Record(ctx context.Context) ([]float32, error) {
	f.mu.Lock()
	if len(f.queue) == 0 {
		f.mu.Unlock()
		return nil, ErrNoFile
	}
	path := f.queue[0]
	f.queue = f.queue[1:]
	f.mu.Unlock()

	return audioconv.ConvertFileToPCM16k(ctx, path, audioconv.Options{MaxSamples: maxNoteSamples})
}
