package s3store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// connPool manages a bounded pool of *s3.Client handles. The AWS SDK
// client is itself safe for concurrent use and holds no connection state
// of its own, but pooling still bounds how many are constructed and gives
// a place to hang a periodic reachability check.
type connPool struct {
	mu          sync.RWMutex
	connections chan *s3.Client
	factory     func() (*s3.Client, error)
	maxSize     int
	currentSize int
	closed      bool

	stats poolStats

	healthCheck *poolHealthChecker
}

type poolStats struct {
	Hits      int64
	Misses    int64
	Created   int64
	Destroyed int64
}

func newConnPool(maxSize int, factory func() (*s3.Client, error)) (*connPool, error) {
	if maxSize <= 0 {
		maxSize = 8
	}
	if factory == nil {
		return nil, fmt.Errorf("s3store: connection factory cannot be nil")
	}

	p := &connPool{
		connections: make(chan *s3.Client, maxSize),
		factory:     factory,
		maxSize:     maxSize,
	}
	p.healthCheck = &poolHealthChecker{
		pool:     p,
		interval: 30 * time.Second,
		timeout:  5 * time.Second,
		stopCh:   make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go p.healthCheck.run()

	return p, nil
}

// get returns a client from the pool, creating one if the pool has room
// and no idle client is immediately available.
func (p *connPool) get() (*s3.Client, error) {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("s3store: connection pool closed")
	}

	select {
	case conn := <-p.connections:
		p.mu.Lock()
		p.stats.Hits++
		p.mu.Unlock()
		return conn, nil
	default:
	}

	p.mu.Lock()
	canCreate := p.currentSize < p.maxSize
	p.mu.Unlock()

	if canCreate {
		return p.createConnection()
	}

	p.mu.Lock()
	p.stats.Misses++
	p.mu.Unlock()

	select {
	case conn := <-p.connections:
		return conn, nil
	case <-time.After(10 * time.Second):
		return nil, fmt.Errorf("s3store: timed out waiting for a pooled client")
	}
}

func (p *connPool) put(conn *s3.Client) {
	if conn == nil {
		return
	}

	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return
	}

	select {
	case p.connections <- conn:
	default:
		p.mu.Lock()
		p.currentSize--
		p.stats.Destroyed++
		p.mu.Unlock()
	}
}

func (p *connPool) createConnection() (*s3.Client, error) {
	conn, err := p.factory()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.currentSize++
	p.stats.Created++
	p.mu.Unlock()

	return conn, nil
}

func (p *connPool) Stats() poolStats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stats
}

func (p *connPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	close(p.healthCheck.stopCh)
	<-p.healthCheck.stopped

	close(p.connections)
	for range p.connections {
	}

	return nil
}

// poolHealthChecker periodically round-trips a handful of idle clients
// through ListBuckets to catch a client whose credentials or network path
// have gone stale before the sync engine does.
type poolHealthChecker struct {
	pool     *connPool
	interval time.Duration
	timeout  time.Duration
	stopCh   chan struct{}
	stopped  chan struct{}
}

func (hc *poolHealthChecker) run() {
	defer close(hc.stopped)

	ticker := time.NewTicker(hc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-hc.stopCh:
			return
		case <-ticker.C:
			hc.checkHealth()
		}
	}
}

func (hc *poolHealthChecker) checkHealth() {
	const sampleSize = 3

	for i := 0; i < sampleSize; i++ {
		select {
		case conn := <-hc.pool.connections:
			if hc.testConnection(conn) {
				hc.pool.put(conn)
			} else {
				hc.pool.mu.Lock()
				hc.pool.currentSize--
				hc.pool.stats.Destroyed++
				hc.pool.mu.Unlock()
			}
		default:
			return
		}
	}
}

func (hc *poolHealthChecker) testConnection(conn *s3.Client) bool {
	ctx, cancel := context.WithTimeout(context.Background(), hc.timeout)
	defer cancel()

	_, err := conn.ListBuckets(ctx, &s3.ListBucketsInput{})
	return err == nil
}
