package logger

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	gnet "github.com/shirou/gopsutil/v3/net"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

var (
	errorsTotal       int64
	warnsTotal        int64
	ticksAccepted     int64
	ticksDropped      int64
	reconnectAttempts int64
	sinkRows          int64
	archiveUploads    int64
)

func recordWarn(string) {
	atomic.AddInt64(&warnsTotal, 1)
}

func recordError(string) {
	atomic.AddInt64(&errorsTotal, 1)
}

// IncrementTickAccepted counts a validated tick delivered to the sink.
func IncrementTickAccepted() {
	atomic.AddInt64(&ticksAccepted, 1)
}

// IncrementTickDropped counts a malformed tick discarded before the sink.
func IncrementTickDropped() {
	atomic.AddInt64(&ticksDropped, 1)
}

// IncrementReconnectAttempt counts one reconnection attempt after a drop.
func IncrementReconnectAttempt() {
	atomic.AddInt64(&reconnectAttempts, 1)
}

// IncrementSinkRow counts a row appended to the record sink.
func IncrementSinkRow() {
	atomic.AddInt64(&sinkRows, 1)
}

// IncrementArchiveUpload counts a parquet segment uploaded to the archive.
func IncrementArchiveUpload() {
	atomic.AddInt64(&archiveUploads, 1)
}

// TicksAccepted returns the number of ticks accepted so far.
func TicksAccepted() int64 { return atomic.LoadInt64(&ticksAccepted) }

// TicksDropped returns the number of ticks dropped so far.
func TicksDropped() int64 { return atomic.LoadInt64(&ticksDropped) }

// StartReport begins periodic logging of system and counter statistics.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

func logReport(ctx context.Context, log *Log) {
	cpuPercent, _ := cpu.Percent(0, false)
	memStats, _ := mem.VirtualMemory()
	diskStats, _ := disk.Usage("/")
	netStats, _ := gnet.IOCounters(false)

	cpuPct := 0.0
	if len(cpuPercent) > 0 {
		cpuPct = cpuPercent[0]
	}

	bytesSent := uint64(0)
	bytesRecv := uint64(0)
	if len(netStats) > 0 {
		bytesSent = netStats[0].BytesSent
		bytesRecv = netStats[0].BytesRecv
	}

	fields := Fields{
		"errors":             atomic.LoadInt64(&errorsTotal),
		"warns":              atomic.LoadInt64(&warnsTotal),
		"ticks_accepted":     atomic.LoadInt64(&ticksAccepted),
		"ticks_dropped":      atomic.LoadInt64(&ticksDropped),
		"reconnect_attempts": atomic.LoadInt64(&reconnectAttempts),
		"sink_rows":          atomic.LoadInt64(&sinkRows),
		"archive_uploads":    atomic.LoadInt64(&archiveUploads),
		"goroutines":         runtime.NumGoroutine(),
		"cpu_percent":        cpuPct,
		"memory_mb":          int64(memStats.Used) / 1024 / 1024,
		"disk_mb":            int64(diskStats.Used) / 1024 / 1024,
		"net_bytes_sent":     int64(bytesSent),
		"net_bytes_recv":     int64(bytesRecv),
	}

	log.WithComponent("report").WithFields(fields).Info("runtime report")

	data := []cwtypes.MetricDatum{
		{MetricName: aws.String("CPUPercent"), Unit: cwtypes.StandardUnitPercent, Value: aws.Float64(cpuPct)},
		{MetricName: aws.String("MemoryMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(memStats.Used) / 1024 / 1024)},
		{MetricName: aws.String("TicksAccepted"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&ticksAccepted)))},
		{MetricName: aws.String("TicksDropped"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&ticksDropped)))},
		{MetricName: aws.String("ReconnectAttempts"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&reconnectAttempts)))},
		{MetricName: aws.String("SinkRows"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&sinkRows)))},
		{MetricName: aws.String("ArchiveUploads"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&archiveUploads)))},
		{MetricName: aws.String("NetBytesSent"), Unit: cwtypes.StandardUnitBytes, Value: aws.Float64(float64(bytesSent))},
		{MetricName: aws.String("NetBytesRecv"), Unit: cwtypes.StandardUnitBytes, Value: aws.Float64(float64(bytesRecv))},
	}

	publishMetrics(ctx, data)
}
