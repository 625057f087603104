package dataloader

import (
	"fmt"
	"math/rand"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/tsawler/catsdogs/training"
	"github.com/tsawler/catsdogs/vision/preprocessing"
)

// Dataset interface defines the contract for datasets
type Dataset interface {
	Len() int
	GetItem(index int) (imagePath string, label int, err error)
}

// DataLoader yields batches of preprocessed images forever, wrapping around at
// the end of the dataset. It implements training.BatchSource.
type DataLoader struct {
	dataset   Dataset
	batchSize int
	shuffle   bool
	rng       *rand.Rand
	indices   []int
	position  int
	mu        sync.Mutex

	// Cache manager - can be shared between DataLoaders
	cacheManager *CacheManager
	ownedCache   bool

	processor  *preprocessing.ImageProcessor
	augmenter  *preprocessing.Augmenter
	numWorkers int
	width      int
	height     int
}

// Config holds configuration for DataLoader
type Config struct {
	BatchSize    int
	Shuffle      bool
	Seed         int64
	MaxCacheSize int // Maximum number of images to cache
	Width        int
	Height       int
	Rescale      float32
	NumWorkers   int                          // Number of parallel decoders
	Augment      *preprocessing.AugmentConfig // nil disables augmentation
	CacheManager *CacheManager                // Optional shared cache manager
}

// NewDataLoader creates a new data loader
func NewDataLoader(dataset Dataset, config Config) (*DataLoader, error) {
	if dataset.Len() == 0 {
		return nil, fmt.Errorf("dataset is empty")
	}
	if config.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", config.BatchSize)
	}
	if config.Width <= 0 || config.Height <= 0 {
		return nil, fmt.Errorf("image size must be positive, got %dx%d", config.Width, config.Height)
	}
	if config.MaxCacheSize == 0 {
		config.MaxCacheSize = 1000
	}
	if config.NumWorkers <= 0 {
		config.NumWorkers = 1
	}
	if config.Rescale == 0 {
		config.Rescale = 1
	}

	dl := &DataLoader{
		dataset:    dataset,
		batchSize:  config.BatchSize,
		shuffle:    config.Shuffle,
		rng:        rand.New(rand.NewSource(config.Seed)),
		indices:    make([]int, dataset.Len()),
		processor:  preprocessing.NewImageProcessor(config.Width, config.Height, config.Rescale),
		numWorkers: config.NumWorkers,
		width:      config.Width,
		height:     config.Height,
	}
	for i := range dl.indices {
		dl.indices[i] = i
	}

	if config.Augment != nil && config.Augment.Enabled() {
		dl.augmenter = preprocessing.NewAugmenter(*config.Augment, config.Width, config.Height, config.Seed+1)
	}

	// Augmented images differ on every pass, so only plain loaders cache
	if dl.augmenter == nil {
		if config.CacheManager != nil {
			dl.cacheManager = config.CacheManager
		} else {
			dl.cacheManager = NewCacheManager(config.MaxCacheSize, dl.processor.Size())
			dl.ownedCache = true
		}
	}

	if dl.shuffle {
		dl.shuffleIndices()
	}
	return dl, nil
}

func (dl *DataLoader) shuffleIndices() {
	dl.rng.Shuffle(len(dl.indices), func(i, j int) {
		dl.indices[i], dl.indices[j] = dl.indices[j], dl.indices[i]
	})
}

// Len returns the number of batches in one pass over the dataset
func (dl *DataLoader) Len() int {
	return (len(dl.indices) + dl.batchSize - 1) / dl.batchSize
}

// NumSamples returns the number of items in the dataset
func (dl *DataLoader) NumSamples() int {
	return len(dl.indices)
}

// Reset rewinds the data loader to the beginning, reshuffling when enabled
func (dl *DataLoader) Reset() {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	dl.position = 0
	if dl.shuffle {
		dl.shuffleIndices()
	}
}

// Next loads the next batch. The final batch of a pass may be smaller than
// the batch size; the call after it starts a new pass. Items that fail to
// load are skipped.
func (dl *DataLoader) Next() (*training.Batch, error) {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	if dl.position >= len(dl.indices) {
		dl.position = 0
		if dl.shuffle {
			dl.shuffleIndices()
		}
	}

	end := dl.position + dl.batchSize
	if end > len(dl.indices) {
		end = len(dl.indices)
	}
	batchIndices := dl.indices[dl.position:end]
	dl.position = end

	// Transforms are drawn in order so a seed reproduces the same batches
	var transforms []*preprocessing.Transform
	if dl.augmenter != nil {
		transforms = make([]*preprocessing.Transform, len(batchIndices))
		for i := range transforms {
			transforms[i] = dl.augmenter.Sample()
		}
	}

	images := make([][]float32, len(batchIndices))
	labels := make([]int, len(batchIndices))

	var g errgroup.Group
	g.SetLimit(dl.numWorkers)
	for i, idx := range batchIndices {
		g.Go(func() error {
			imagePath, label, err := dl.dataset.GetItem(idx)
			if err != nil {
				return nil
			}

			var transform *preprocessing.Transform
			if transforms != nil {
				transform = transforms[i]
			}
			data, err := dl.loadImage(imagePath, transform)
			if err != nil {
				return nil
			}

			images[i] = data
			labels[i] = label
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return dl.assemble(images, labels)
}

// assemble packs the loaded images into a contiguous batch
func (dl *DataLoader) assemble(images [][]float32, labels []int) (*training.Batch, error) {
	size := dl.processor.Size()
	batch := &training.Batch{
		Channels: 3,
		Height:   dl.height,
		Width:    dl.width,
	}

	for i, data := range images {
		if data == nil {
			continue
		}
		batch.Images = append(batch.Images, data[:size]...)
		batch.Labels = append(batch.Labels, float32(labels[i]))
		batch.Size++
	}

	if batch.Size == 0 {
		return nil, fmt.Errorf("%w: all %d items failed to load", training.ErrEmptyBatch, len(images))
	}
	return batch, nil
}

// loadImage loads an image, going through the cache when the loader has one
func (dl *DataLoader) loadImage(imagePath string, transform *preprocessing.Transform) ([]float32, error) {
	if dl.cacheManager != nil {
		if cachedData, exists := dl.cacheManager.Get(imagePath); exists {
			return cachedData, nil
		}
	}

	processedImg, err := dl.processor.LoadAndPreprocess(imagePath, transform)
	if err != nil {
		return nil, err
	}

	if dl.cacheManager != nil {
		dl.cacheManager.Put(imagePath, processedImg.Data)
	}
	return processedImg.Data, nil
}

// Stats returns cache statistics
func (dl *DataLoader) Stats() string {
	if dl.cacheManager == nil {
		return "Cache: disabled"
	}
	return dl.cacheManager.Stats().String()
}

// Progress returns the current position within the pass
func (dl *DataLoader) Progress() (current, total int) {
	dl.mu.Lock()
	defer dl.mu.Unlock()
	return dl.position, len(dl.indices)
}

// ClearCache clears the image cache unless it is shared
func (dl *DataLoader) ClearCache() {
	if dl.ownedCache {
		dl.cacheManager.Clear()
	}
}

// GetCacheManager returns the cache manager for sharing between DataLoaders.
// It is nil for augmenting loaders.
func (dl *DataLoader) GetCacheManager() *CacheManager {
	return dl.cacheManager
}
