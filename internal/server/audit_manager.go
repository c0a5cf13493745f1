package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/parceltrack/internal/kafka"
	"gitlab.ozon.dev/pupkingeorgij/parceltrack/internal/metrics"
)

const publishTimeout = 5 * time.Second

// AuditManager collects audit entries into batches and publishes them to
// the event stream from a pool of workers.
type AuditManager struct {
	producer kafka.Producer
	topic    string
	logger   *zap.Logger

	workerCount int
	batchSize   int
	timeout     time.Duration

	inputChan  chan AuditLogEntry
	batchChan  chan []AuditLogEntry
	shutdownCh chan struct{}
	once       sync.Once

	// stateMu orders Start against Shutdown so wg.Add never races wg.Wait.
	stateMu sync.Mutex
	started bool

	wg           sync.WaitGroup
	pendingMu    sync.Mutex
	pendingCount int
}

func NewAuditManager(producer kafka.Producer, topic string, logger *zap.Logger, workerCount, batchSize int, timeout time.Duration) *AuditManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditManager{
		producer:    producer,
		topic:       topic,
		logger:      logger,
		workerCount: workerCount,
		batchSize:   batchSize,
		timeout:     timeout,
		inputChan:   make(chan AuditLogEntry, workerCount*batchSize*2),
		batchChan:   make(chan []AuditLogEntry, workerCount*2),
		shutdownCh:  make(chan struct{}),
	}
}

// Start launches the aggregator and workers. It is a no-op when the manager
// is already running or has been shut down.
func (m *AuditManager) Start(ctx context.Context) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	if m.started || m.isShutdown() {
		return
	}
	m.started = true

	m.logger.Info("Starting AuditManager",
		zap.Int("workers", m.workerCount),
		zap.Int("batch_size", m.batchSize),
		zap.String("topic", m.topic))

	m.wg.Add(1)
	go m.runAggregator(ctx)

	for i := 0; i < m.workerCount; i++ {
		m.wg.Add(1)
		go m.runWorker(ctx, i)
	}

	go m.monitorShutdown(ctx)
}

// Shutdown stops accepting batches, flushes what is buffered and waits for
// the workers until ctx expires.
func (m *AuditManager) Shutdown(ctx context.Context) {
	m.once.Do(func() {
		m.logger.Info("Initiating AuditManager shutdown")
		m.stateMu.Lock()
		close(m.shutdownCh)
		m.stateMu.Unlock()

		done := make(chan struct{})
		go func() {
			m.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			m.logger.Info("AuditManager shutdown completed")
		case <-ctx.Done():
			m.logger.Warn("AuditManager shutdown interrupted", zap.Int("pending", m.Pending()))
		}
	})
}

func (m *AuditManager) monitorShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
		m.logger.Info("Context cancellation detected")
		m.Shutdown(context.Background())
	case <-m.shutdownCh:
	}
}

func (m *AuditManager) isShutdown() bool {
	select {
	case <-m.shutdownCh:
		return true
	default:
		return false
	}
}

func (m *AuditManager) LogEntry(ctx context.Context, entry AuditLogEntry) {
	m.updatePendingCount(1)

	if m.isShutdown() {
		m.emergencyLog(entry)
		return
	}

	select {
	case m.inputChan <- entry:
	case <-ctx.Done():
		m.emergencyLog(entry)
	case <-m.shutdownCh:
		m.emergencyLog(entry)
	}
}

// Pending reports entries accepted but not yet published.
func (m *AuditManager) Pending() int {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	return m.pendingCount
}

func (m *AuditManager) runAggregator(ctx context.Context) {
	defer m.wg.Done()

	var (
		batch    []AuditLogEntry
		timer    *time.Timer
		timeoutC <-chan time.Time
	)

	stopTimer := func() {
		if timer != nil {
			timer.Stop()
		}
		timeoutC = nil
	}

	defer func() {
		stopTimer()
	drain:
		for {
			select {
			case entry := <-m.inputChan:
				batch = append(batch, entry)
			default:
				break drain
			}
		}
		if len(batch) > 0 {
			m.dispatchBatch(batch)
		}
		close(m.batchChan)
	}()

	for {
		select {
		case entry := <-m.inputChan:
			batch = append(batch, entry)
			if len(batch) >= m.batchSize {
				stopTimer()
				m.dispatchBatch(batch)
				batch = nil
			} else if len(batch) == 1 {
				timer = time.NewTimer(m.timeout)
				timeoutC = timer.C
			}

		case <-timeoutC:
			timeoutC = nil
			m.dispatchBatch(batch)
			batch = nil

		case <-ctx.Done():
			return

		case <-m.shutdownCh:
			return
		}
	}
}

func (m *AuditManager) dispatchBatch(batch []AuditLogEntry) {
	batchCopy := make([]AuditLogEntry, len(batch))
	copy(batchCopy, batch)

	select {
	case m.batchChan <- batchCopy:
	default:
		m.publishBatch(-1, batchCopy)
	}
}

func (m *AuditManager) runWorker(ctx context.Context, id int) {
	defer m.wg.Done()

	for {
		select {
		case batch, ok := <-m.batchChan:
			if !ok {
				m.logger.Debug("Audit worker exiting", zap.Int("worker", id))
				return
			}
			m.publishBatch(id, batch)
		case <-ctx.Done():
			for batch := range m.batchChan {
				m.publishBatch(id, batch)
			}
			m.logger.Debug("Audit worker exiting", zap.Int("worker", id))
			return
		}
	}
}

func (m *AuditManager) publishBatch(workerID int, batch []AuditLogEntry) {
	for _, entry := range batch {
		value, err := json.Marshal(entry)
		if err != nil {
			m.logger.Error("Marshal audit entry", zap.Error(err))
			metrics.AuditEntriesDroppedTotal.Inc()
			m.updatePendingCount(-1)
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		err = m.producer.SendMessage(ctx, m.topic, entry.key(), value)
		cancel()
		if err != nil {
			m.logger.Warn("Publish audit entry",
				zap.Int("worker", workerID),
				zap.String("handler", entry.Handler),
				zap.Error(err))
			metrics.AuditEntriesDroppedTotal.Inc()
		}
		m.updatePendingCount(-1)
	}
}

func (m *AuditManager) emergencyLog(entry AuditLogEntry) {
	m.logger.Warn("Audit entry not queued",
		zap.String("handler", entry.Handler),
		zap.String("method", entry.Method),
		zap.String("path", entry.Path),
		zap.Int("status_code", entry.StatusCode),
		zap.String("package_id", entry.PackageID))
	metrics.AuditEntriesDroppedTotal.Inc()
	m.updatePendingCount(-1)
}

func (m *AuditManager) updatePendingCount(delta int) {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	m.pendingCount += delta
}
