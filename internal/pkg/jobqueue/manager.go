package jobqueue

import (
	"sync"
	"time"

	"github.com/cartflow/CartFlow/app/models"
	"github.com/cartflow/CartFlow/internal/pkg/carrier"
	"github.com/cartflow/CartFlow/internal/pkg/commerce"
	"github.com/cartflow/CartFlow/internal/pkg/database"
	"github.com/cartflow/CartFlow/internal/pkg/gateway"
	"github.com/cartflow/CartFlow/internal/pkg/mail"
	"github.com/cartflow/CartFlow/internal/pkg/webhook"
	"github.com/gofiber/fiber/v2/log"
)

// Manager owns the global job queue and its periodic producers.
type Manager struct {
	queue          *Queue
	shipments      *commerce.ShipmentService
	trackingTicker *time.Ticker
	stopCh         chan struct{}
	wg             sync.WaitGroup
	mu             sync.Mutex
	running        bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the global job queue manager (singleton).
func GetManager() *Manager {
	managerOnce.Do(func() {
		workerCount := 5
		if settings := models.GetAppSettings(); settings != nil {
			workerCount = settings.GetJobQueueWorkerCount()
		}

		db := database.GetDB()
		store := NewStore(db)
		queue := NewQueue(store, workerCount)

		orders := commerce.NewOrderService(db)
		shipments := commerce.NewShipmentService(db)
		handlers := NewHandlers(
			webhook.NewRepository(db),
			orders,
			shipments,
			mail.SendMail,
			gateway.NewRazorpayClientFromEnv(),
			carrier.NewDelhiveryClientFromEnv(),
			queue.EnqueueJob,
		)
		handlers.RegisterAll(queue)

		globalManager = &Manager{
			queue:     queue,
			shipments: shipments,
			stopCh:    make(chan struct{}),
		}
	})
	return globalManager
}

// GetQueue returns the managed job queue.
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// Start starts the job queue and the periodic tracking producer.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel per start cycle so the manager can be restarted.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue and background tasks")

	m.queue.Start()

	trackingInterval := 30 * time.Minute
	if settings := models.GetAppSettings(); settings != nil {
		if v := settings.GetTrackingSyncIntervalMinutes(); v > 0 {
			trackingInterval = time.Duration(v) * time.Minute
		}
	}
	m.trackingTicker = time.NewTicker(trackingInterval)
	m.wg.Add(1)
	go m.trackingSyncWorker(trackingInterval)

	log.Info("[JobQueue Manager] Started successfully")
}

// Stop stops the job queue and background tasks.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and background tasks...")

	if m.trackingTicker != nil {
		m.trackingTicker.Stop()
	}

	close(m.stopCh)
	m.running = false
	m.wg.Wait()
	m.queue.Stop()

	log.Info("[JobQueue Manager] Stopped successfully")
}

// IsRunning returns whether the manager is currently running.
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// trackingSyncWorker periodically enqueues tracking.sync jobs for in-transit
// shipments whose carrier status has gone stale.
func (m *Manager) trackingSyncWorker(interval time.Duration) {
	defer m.wg.Done()
	log.Infof("[JobQueue Manager] Started tracking sync worker (interval: %s)", interval)

	for {
		select {
		case <-m.stopCh:
			log.Info("[JobQueue Manager] Tracking sync worker stopping")
			return
		case <-m.trackingTicker.C:
			if err := m.enqueueStaleTrackingSyncs(interval); err != nil {
				log.Errorf("[JobQueue Manager] Tracking sync sweep error: %v", err)
			}
		}
	}
}

func (m *Manager) enqueueStaleTrackingSyncs(staleAfter time.Duration) error {
	shipments, err := m.shipments.ListStaleInTransit(time.Now().Add(-staleAfter), 100)
	if err != nil {
		return err
	}
	for _, shipment := range shipments {
		if _, err := m.queue.EnqueueJob(JobTypeTrackingSync, TrackingSyncPayload{
			ShipmentID: shipment.ID,
			Waybill:    shipment.Waybill,
		}, 0); err != nil {
			return err
		}
	}
	if len(shipments) > 0 {
		log.Infof("[JobQueue Manager] Enqueued tracking sync for %d shipment(s)", len(shipments))
	}
	return nil
}
