package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hacksphere/esp32-gateway/internal/models"
	"github.com/hacksphere/esp32-gateway/pkg/s3"
)

// Archiver batches accepted sensor readings and exports them to object
// storage as JSON documents. Export is best-effort: a failed upload is
// logged and the batch is dropped, it never blocks or fails ingestion.
type Archiver struct {
	Storage       s3.ObjectStorageClient
	Bucket        string
	BatchSize     int
	FlushInterval time.Duration
	Logger        zerolog.Logger

	mu    sync.Mutex
	batch []models.SensorReading

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewArchiver initializes a new Archiver.
func NewArchiver(storage s3.ObjectStorageClient, bucket string, batchSize int,
	flushInterval time.Duration, logger zerolog.Logger) *Archiver {

	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = time.Minute
	}
	return &Archiver{
		Storage:       storage,
		Bucket:        bucket,
		BatchSize:     batchSize,
		FlushInterval: flushInterval,
		Logger:        logger.With().Str("component", "archiver").Logger(),
	}
}

// Record appends a reading to the current batch. Never blocks on upload;
// when the batch is full it is handed to a goroutine for export.
func (a *Archiver) Record(reading models.SensorReading) {
	a.mu.Lock()
	a.batch = append(a.batch, reading)
	var full []models.SensorReading
	if len(a.batch) >= a.BatchSize {
		full = a.batch
		a.batch = nil
	}
	a.mu.Unlock()

	if full != nil {
		go a.upload(full)
	}
}

// Start launches the periodic flush loop.
func (a *Archiver) Start() error {
	if a.ctx != nil {
		a.Logger.Warn().Msg("Archiver is already running")
		return errors.New("archiver is already running")
	}
	a.ctx, a.cancel = context.WithCancel(context.Background())

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.runFlushLoop()
	}()

	a.Logger.Info().Str("bucket", a.Bucket).Int("batch_size", a.BatchSize).Msg("Archiver started successfully")
	return nil
}

// Stop flushes the pending batch and stops the loop.
func (a *Archiver) Stop() error {
	if a.ctx == nil {
		a.Logger.Warn().Msg("Archiver is not running")
		return errors.New("archiver is not running")
	}

	a.cancel()
	a.wg.Wait()
	a.flush()

	a.ctx = nil
	a.cancel = nil

	a.Logger.Info().Msg("Archiver stopped successfully")
	return nil
}

func (a *Archiver) runFlushLoop() {
	ticker := time.NewTicker(a.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.flush()
		case <-a.ctx.Done():
			return
		}
	}
}

func (a *Archiver) flush() {
	a.mu.Lock()
	pending := a.batch
	a.batch = nil
	a.mu.Unlock()

	if len(pending) > 0 {
		a.upload(pending)
	}
}

func (a *Archiver) upload(readings []models.SensorReading) {
	data, err := json.Marshal(readings)
	if err != nil {
		a.Logger.Error().Err(err).Msg("Failed to serialize reading batch")
		return
	}

	objectName := fmt.Sprintf("readings/%s/%s.json", time.Now().UTC().Format("2006/01/02"), uuid.NewString())
	if err := a.Storage.UploadJSON(context.Background(), a.Bucket, objectName, data); err != nil {
		a.Logger.Error().Err(err).Int("count", len(readings)).Msg("Failed to archive reading batch")
		return
	}

	a.Logger.Debug().Str("object", objectName).Int("count", len(readings)).Msg("Archived reading batch")
}
