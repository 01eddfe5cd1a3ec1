package writer

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	parquetwriter "github.com/xitongsys/parquet-go/writer"

	appconfig "vnflow/config"
	"vnflow/logger"
	"vnflow/models"
)

// TickParquet is the parquet schema for archived ticks.
type TickParquet struct {
	Symbol     string  `parquet:"name=symbol, type=BYTE_ARRAY, convertedtype=UTF8"`
	MatchPrice float64 `parquet:"name=match_price, type=DOUBLE"`
	MatchQtty  float64 `parquet:"name=match_qtty, type=DOUBLE"`
	Time       string  `parquet:"name=time, type=BYTE_ARRAY, convertedtype=UTF8"`
	Side       string  `parquet:"name=side, type=BYTE_ARRAY, convertedtype=UTF8"`
	Session    string  `parquet:"name=session, type=BYTE_ARRAY, convertedtype=UTF8"`
	Volume     string  `parquet:"name=volume, type=BYTE_ARRAY, convertedtype=UTF8"`
	Type       string  `parquet:"name=type, type=BYTE_ARRAY, convertedtype=UTF8"`
	ReceivedAt int64   `parquet:"name=received_at, type=INT64"`
}

// memoryFileWriter implements ParquetFile interface for in-memory writing
type memoryFileWriter struct {
	buffer *bytes.Buffer
}

func newMemoryFileWriter() *memoryFileWriter {
	return &memoryFileWriter{buffer: &bytes.Buffer{}}
}

func (mfw *memoryFileWriter) Create(name string) (source.ParquetFile, error) { return mfw, nil }
func (mfw *memoryFileWriter) Open(name string) (source.ParquetFile, error)  { return mfw, nil }

func (mfw *memoryFileWriter) Seek(offset int64, whence int) (int64, error) {
	// Write-only usage; seeking is not required.
	return int64(mfw.buffer.Len()), nil
}

func (mfw *memoryFileWriter) Read(b []byte) (int, error)  { return mfw.buffer.Read(b) }
func (mfw *memoryFileWriter) Write(b []byte) (int, error) { return mfw.buffer.Write(b) }
func (mfw *memoryFileWriter) Close() error                { return nil }
func (mfw *memoryFileWriter) Bytes() []byte               { return mfw.buffer.Bytes() }

// ArchiveWriter batches accepted ticks per symbol and periodically uploads
// them as parquet segments to S3. Ticks arrive through a buffered channel so
// the synchronous sink path is never stalled by an upload; when the channel
// is full the tick is archived best-effort and dropped with a warning.
type ArchiveWriter struct {
	config   *appconfig.Config
	s3Client *s3.Client
	in       chan models.Tick
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.Mutex
	buffer   map[string][]models.Tick
	log      *logger.Log
}

// NewArchiveWriter configures the AWS SDK and returns a writer ready to
// Start. Returns an error when credentials cannot be resolved.
func NewArchiveWriter(cfg *appconfig.Config) (*ArchiveWriter, error) {
	log := logger.GetLogger()
	ctx := context.Background()

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Archive.Region),
	}
	if cfg.Archive.AccessKeyID != "" && cfg.Archive.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.Archive.AccessKeyID,
				cfg.Archive.SecretAccessKey,
				"",
			),
		))
	}

	awsConfig, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	creds, err := awsConfig.Credentials.Retrieve(ctx)
	if err != nil || !creds.HasKeys() {
		return nil, fmt.Errorf("aws credentials not found")
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Archive.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Archive.Endpoint)
		}
		o.UsePathStyle = cfg.Archive.PathStyle
	})

	w := &ArchiveWriter{
		config:   cfg,
		s3Client: s3Client,
		in:       make(chan models.Tick, cfg.Archive.BufferSize),
		buffer:   make(map[string][]models.Tick),
		log:      log,
	}

	log.WithComponent("archive_writer").WithFields(logger.Fields{
		"bucket":     cfg.Archive.Bucket,
		"region":     cfg.Archive.Region,
		"endpoint":   cfg.Archive.Endpoint,
		"path_style": cfg.Archive.PathStyle,
	}).Info("archive writer initialized")

	return w, nil
}

// Append offers a tick to the archive without blocking the caller.
func (w *ArchiveWriter) Append(tick models.Tick) error {
	select {
	case w.in <- tick:
	default:
		w.log.WithComponent("archive_writer").Warn("archive channel full, dropping tick")
	}
	return nil
}

// Start launches the collector and flush workers.
func (w *ArchiveWriter) Start(ctx context.Context) {
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(2)
	go w.collect()
	go w.flushWorker()

	w.log.WithComponent("archive_writer").Info("archive writer started")
}

// Close stops the workers and flushes any buffered ticks.
func (w *ArchiveWriter) Close() error {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	w.flushBuffers("shutdown")
	w.log.WithComponent("archive_writer").Info("archive writer stopped")
	return nil
}

func (w *ArchiveWriter) collect() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			// Drain ticks still queued so the shutdown flush archives them.
			for {
				select {
				case tick := <-w.in:
					w.mu.Lock()
					w.buffer[tick.Symbol] = append(w.buffer[tick.Symbol], tick)
					w.mu.Unlock()
				default:
					return
				}
			}
		case tick := <-w.in:
			w.mu.Lock()
			w.buffer[tick.Symbol] = append(w.buffer[tick.Symbol], tick)
			w.mu.Unlock()
		}
	}
}

func (w *ArchiveWriter) flushWorker() {
	defer w.wg.Done()

	log := w.log.WithComponent("archive_writer").WithFields(logger.Fields{"worker": "flush"})
	ticker := time.NewTicker(w.config.Archive.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			log.Info("flush worker stopped due to context cancellation")
			return
		case <-ticker.C:
			w.flushBuffers("interval")
		}
	}
}

func (w *ArchiveWriter) flushBuffers(reason string) {
	w.mu.Lock()
	buffers := w.buffer
	w.buffer = make(map[string][]models.Tick)
	w.mu.Unlock()

	if len(buffers) == 0 {
		return
	}

	w.log.WithComponent("archive_writer").WithFields(logger.Fields{
		"flushed_buffers": len(buffers),
		"reason":          reason,
	}).Info("flushing buffers")

	for symbol, ticks := range buffers {
		if len(ticks) == 0 {
			continue
		}
		w.processSegment(symbol, ticks)
	}
}

func (w *ArchiveWriter) processSegment(symbol string, ticks []models.Tick) {
	log := w.log.WithComponent("archive_writer").WithFields(logger.Fields{
		"symbol":       symbol,
		"record_count": len(ticks),
		"operation":    "process_segment",
	})

	key := w.segmentKey(symbol, time.Now().UTC())
	log = log.WithFields(logger.Fields{"s3_key": key})

	data, err := w.createParquetSegment(ticks)
	if err != nil {
		log.WithError(err).Error("failed to create parquet segment")
		return
	}

	if err := w.upload(key, data); err != nil {
		log.WithError(err).
			WithEnv("S3_BUCKET").
			WithFields(logger.Fields{"bucket": w.config.Archive.Bucket}).
			Error("failed to upload to S3")
		return
	}

	logger.IncrementArchiveUpload()
	w.log.LogMetric("archive_writer", "segment_bytes", len(data), "gauge", logger.Fields{"symbol": symbol})
	w.log.LogMetric("archive_writer", "segment_records", len(ticks), "counter", logger.Fields{"symbol": symbol})
	log.WithFields(logger.Fields{"file_size": len(data)}).Info("segment uploaded successfully")
}

func (w *ArchiveWriter) segmentKey(symbol string, ts time.Time) string {
	key := filepath.Join(
		fmt.Sprintf("symbol=%s", symbol),
		fmt.Sprintf("%04d/%02d/%02d", ts.Year(), ts.Month(), ts.Day()),
		fmt.Sprintf("ticks_%s_%s_%s.parquet", symbol, ts.Format("20060102150405"), uuid.New().String()[:8]),
	)
	return filepath.ToSlash(key)
}

func (w *ArchiveWriter) createParquetSegment(ticks []models.Tick) ([]byte, error) {
	fw := newMemoryFileWriter()

	pw, err := parquetwriter.NewParquetWriter(fw, new(TickParquet), 4)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}

	switch w.config.Archive.Compression {
	case "snappy":
		pw.CompressionType = parquet.CompressionCodec_SNAPPY
	case "gzip":
		pw.CompressionType = parquet.CompressionCodec_GZIP
	default:
		pw.CompressionType = parquet.CompressionCodec_UNCOMPRESSED
	}

	now := time.Now().UnixMilli()
	for _, tick := range ticks {
		record := TickParquet{
			Symbol:     tick.Symbol,
			MatchPrice: tick.MatchPrice,
			MatchQtty:  tick.MatchQtty,
			Time:       tick.Time,
			Side:       tick.Side,
			Session:    tick.Session,
			Volume:     tick.Volume,
			Type:       tick.Type,
			ReceivedAt: now,
		}
		if err := pw.Write(record); err != nil {
			pw.WriteStop()
			return nil, fmt.Errorf("failed to write parquet record: %w", err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("failed to finalize parquet writing: %w", err)
	}

	return fw.Bytes(), nil
}

func (w *ArchiveWriter) upload(key string, data []byte) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(w.config.Archive.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
		Metadata: map[string]string{
			"content-type":   "parquet",
			"compression":    w.config.Archive.Compression,
			"vnflow-version": w.config.Vnflow.Version,
		},
	}

	ctx := context.Background()
	if w.ctx != nil {
		ctx = context.WithoutCancel(w.ctx)
	}
	if _, err := w.s3Client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to upload to S3 bucket %s: %w", w.config.Archive.Bucket, err)
	}
	return nil
}
