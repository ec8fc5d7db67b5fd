// cmd/historian/main.go is the asynchronous historian: it drains room action
// records from the Redis queue and persists them to PostgreSQL in batches,
// and flags rooms closed once their queue activity goes quiet.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"

	"github.com/speedbingo/bingo-service/internal/cache"
	"github.com/speedbingo/bingo-service/internal/database"
)

// HistorianService drains the room action queue into the audit table and
// marks rooms closed after a configured inactivity window.
type HistorianService struct {
	redisClient *redis.Client
	queueName   string
	batchSize   int
	flushDelay  time.Duration
	inactivity  time.Duration

	// lastActivity tracks the most recent queue record per room id.
	lastActivity sync.Map

	batchMu sync.Mutex
	batch   []database.AuditEntry

	ctx      context.Context
	cancelFn context.CancelFunc
}

// NewHistorianService builds a service from environment variables.
func NewHistorianService() *HistorianService {
	redisAddr := getEnv("REDIS_ADDR", "localhost:6379")
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})

	batchSize := getEnvInt("HISTORIAN_BATCH_SIZE", 20)
	ctx, cancel := context.WithCancel(context.Background())
	return &HistorianService{
		redisClient: rdb,
		queueName:   getEnv("HISTORIAN_QUEUE_NAME", cache.DefaultQueueName),
		batchSize:   batchSize,
		flushDelay:  time.Duration(getEnvInt("HISTORIAN_FLUSH_MS", 500)) * time.Millisecond,
		inactivity:  time.Duration(getEnvInt("ROOM_INACTIVITY_TIMEOUT_SEC", 14400)) * time.Second,
		batch:       make([]database.AuditEntry, 0, batchSize),
		ctx:         ctx,
		cancelFn:    cancel,
	}
}

// Run connects to the database and starts the drain and inactivity loops.
func (hs *HistorianService) Run() {
	database.ConnectDB()

	go hs.readRedisLoop()
	go hs.inactivityLoop()

	log.Println("bingo-historian service started.")
	<-hs.ctx.Done()
	hs.flushBatch()
	log.Println("bingo-historian shutting down.")
}

// readRedisLoop pops action records off the queue and batches them. BLPop
// uses a short timeout so the loop notices context cancellation.
func (hs *HistorianService) readRedisLoop() {
	ticker := time.NewTicker(hs.flushDelay)
	defer ticker.Stop()

	for {
		select {
		case <-hs.ctx.Done():
			return

		case <-ticker.C:
			hs.flushBatch()

		default:
			res, err := hs.redisClient.BLPop(hs.ctx, 3*time.Second, hs.queueName).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && hs.ctx.Err() == nil {
					log.Printf("[ERROR] BLPop: %v", err)
				}
				continue
			}
			if len(res) < 2 {
				continue
			}

			var record cache.RoomActionRecord
			if err := json.Unmarshal([]byte(res[1]), &record); err != nil {
				log.Printf("invalid action record: %v", err)
				continue
			}

			hs.lastActivity.Store(record.RoomID, time.Now())
			hs.append(database.AuditEntry{
				RoomID:      record.RoomID,
				ActionIndex: record.ActionIndex,
				PlayerKey:   record.PlayerKey,
				ActionType:  record.ActionType,
				Payload:     record.Payload,
				Timestamp:   record.Timestamp,
			})
		}
	}
}

func (hs *HistorianService) append(entry database.AuditEntry) {
	hs.batchMu.Lock()
	defer hs.batchMu.Unlock()

	hs.batch = append(hs.batch, entry)
	if len(hs.batch) >= hs.batchSize {
		hs.flushLocked()
	}
}

func (hs *HistorianService) flushBatch() {
	hs.batchMu.Lock()
	defer hs.batchMu.Unlock()
	hs.flushLocked()
}

// flushLocked writes the pending batch in one transaction. The insert is
// idempotent on (room, index), so a retried batch cannot duplicate rows.
func (hs *HistorianService) flushLocked() {
	if len(hs.batch) == 0 {
		return
	}
	batchCopy := make([]database.AuditEntry, len(hs.batch))
	copy(batchCopy, hs.batch)
	hs.batch = hs.batch[:0]

	if err := database.InsertAuditEntries(context.Background(), batchCopy); err != nil {
		log.Printf("[ERROR] flush batch: %v", err)
		return
	}
	log.Printf("Flushed %d actions to DB.", len(batchCopy))
}

// inactivityLoop flags rooms closed once no action has arrived for the
// inactivity window. The live server closes its own rooms; this catches rooms
// orphaned by a server crash.
func (hs *HistorianService) inactivityLoop() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-hs.ctx.Done():
			return

		case <-ticker.C:
			now := time.Now()
			hs.lastActivity.Range(func(key, val interface{}) bool {
				roomID, ok1 := key.(uuid.UUID)
				last, ok2 := val.(time.Time)
				if ok1 && ok2 && now.Sub(last) > hs.inactivity {
					hs.markRoomClosed(roomID)
					hs.lastActivity.Delete(roomID)
				}
				return true
			})
		}
	}
}

func (hs *HistorianService) markRoomClosed(roomID uuid.UUID) {
	if err := database.MarkRoomClosed(context.Background(), roomID); err != nil {
		log.Printf("failed to mark room %v closed: %v", roomID, err)
		return
	}
	log.Printf("Marked room %v closed due to inactivity.", roomID)
}

// Stop cancels the service's loops.
func (hs *HistorianService) Stop() {
	hs.cancelFn()
}

func main() {
	hs := NewHistorianService()
	go hs.Run()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	hs.Stop()
	log.Println("Historian shutdown complete.")
}

func getEnv(key, defVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defVal
}

func getEnvInt(key string, defVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defVal
	}
	return i
}
