package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/shirou/gopsutil/process"
	"go.uber.org/zap"

	"github.com/amanice/storefront/internal/domain"
	"github.com/amanice/storefront/pkg/metrics"
)

// AdminLogRetention is how long admin audit rows are kept
const AdminLogRetention = 365 * 24 * time.Hour

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Job names accepted by RunJobNow
const (
	JobCatalogRefresh  = "catalog_refresh"
	JobProcessMonitor  = "process_monitor"
	JobClearExpireData = "clear_expire_data"
)

// JobInfo describes one scheduled task
type JobInfo struct {
	Name     string    `json:"name"`
	Spec     string    `json:"spec"`
	Next     time.Time `json:"next"`
	Prev     time.Time `json:"prev"`
	Running  bool      `json:"running"`
	entryID  cron.EntryID
	function func()
}

func (a *Application) jobTable() []*JobInfo {
	return []*JobInfo{
		{Name: JobCatalogRefresh, Spec: fmt.Sprintf("@every %s", a.appConfig.RefreshInterval()), function: a.SchedCatalogRefreshTask},
		{Name: JobProcessMonitor, Spec: "@every 30s", function: a.SchedProcessMonitorTask},
		{Name: JobClearExpireData, Spec: "@daily", function: a.SchedClearExpireData},
	}
}

func (a *Application) initJob() {
	loc, _ := time.LoadLocation(a.appConfig.System.Location)
	a.sched = cron.New(cron.WithLocation(loc), cron.WithParser(cronParser))
	a.jobs = a.jobTable()

	for _, job := range a.jobs {
		id, err := a.sched.AddFunc(job.Spec, job.function)
		if err != nil {
			zap.S().Errorf("init job error %s", err.Error())
			continue
		}
		job.entryID = id
	}

	a.sched.Start()
}

// Jobs lists the scheduled tasks with their last and next run
func (a *Application) Jobs() []JobInfo {
	jobs := a.jobs
	if jobs == nil {
		jobs = a.jobTable()
	}
	out := make([]JobInfo, 0, len(jobs))
	for _, job := range jobs {
		info := JobInfo{Name: job.Name, Spec: job.Spec}
		if a.sched != nil && job.entryID != 0 {
			entry := a.sched.Entry(job.entryID)
			info.Next, info.Prev = entry.Next, entry.Prev
			info.Running = entry.Valid()
		}
		out = append(out, info)
	}
	return out
}

// RunJobNow runs the named task synchronously
func (a *Application) RunJobNow(name string) error {
	jobs := a.jobs
	if jobs == nil {
		jobs = a.jobTable()
	}
	for _, job := range jobs {
		if job.Name == name {
			zap.L().Info("run job", zap.String("job", name))
			job.function()
			return nil
		}
	}
	return errors.Errorf("unknown job %s", name)
}

// SchedCatalogRefreshTask re-merges the product sources so the snapshot follows remote changes
func (a *Application) SchedCatalogRefreshTask() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), a.appConfig.RemoteTimeout())
	defer cancel()
	before := len(a.engine.Snapshot(ctx))
	after := len(a.engine.Refresh(ctx))
	if before != after {
		zap.L().Info("catalog changed", zap.String("namespace", "catalog"),
			zap.Int("before", before), zap.Int("after", after))
	}
}

// SchedProcessMonitorTask app process monitor
func (a *Application) SchedProcessMonitorTask() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()

	p, err := process.NewProcess(int32(os.Getpid())) //nolint:gosec // G115: PID is always within int32 range
	if err != nil {
		return
	}

	// Collect process CPU usage
	cpuuse, err := p.CPUPercent()
	if err == nil {
		metrics.SetGauge("storefront_cpuuse", int64(cpuuse*100)) // Store as percentage * 100
	}

	// Collect process memory usage
	meminfo, err := p.MemoryInfo()
	if err == nil {
		metrics.SetGauge("storefront_memuse", int64(meminfo.RSS/1024/1024)) //nolint:gosec // G115: memory MB value fits in int64
	}
}

// SchedClearExpireData purges admin audit rows older than AdminLogRetention
func (a *Application) SchedClearExpireData() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()
	result := a.gormDB.
		Where("opt_time < ? ", time.Now().Add(-AdminLogRetention)).
		Delete(&domain.AdminLog{})
	if result.Error != nil {
		zap.L().Error("purge admin log failed", zap.Error(result.Error))
		return
	}
	if result.RowsAffected > 0 {
		zap.L().Info("purged admin log", zap.Int64("rows", result.RowsAffected))
	}
}
