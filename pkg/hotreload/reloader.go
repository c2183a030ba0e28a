package hotreload

import (
	"context"
	"sync"
	"time"

	"github.com/platinummonkey/plugweave/pkg/contextkeys"
	"github.com/platinummonkey/plugweave/pkg/observability"
	"github.com/platinummonkey/plugweave/pkg/plugins"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Reload triggers
const (
	TriggerWatch    = "watch"
	TriggerSchedule = "schedule"
	TriggerAPI      = "api"
	TriggerManual   = "manual"
)

// Result describes one completed reload
type Result struct {
	Trigger  string         `json:"trigger"`
	Started  time.Time      `json:"started"`
	Finished time.Time      `json:"finished"`
	Classes  map[string]int `json:"classes"`
	Error    string         `json:"error,omitempty"`
}

// Reloader reloads every spec of a session. Concurrent requests share one
// in-flight reload.
type Reloader struct {
	session *plugins.Session
	log     logrus.FieldLogger
	metrics *observability.Metrics
	group   singleflight.Group

	mu   sync.RWMutex
	last *Result
}

// NewReloader creates a reloader for session
func NewReloader(session *plugins.Session, log logrus.FieldLogger, metrics *observability.Metrics) *Reloader {
	if log == nil {
		log = logrus.New()
	}
	return &Reloader{
		session: session,
		log:     log.WithField("component", "reloader"),
		metrics: metrics,
	}
}

// Reload runs Session.Reload unless one is already running, in which case
// it waits for that one and returns its result. shared reports the latter.
func (r *Reloader) Reload(ctx context.Context, trigger string) (res Result, shared bool, err error) {
	v, err, shared := r.group.Do("reload", func() (any, error) {
		return r.run(ctx, trigger)
	})
	return v.(Result), shared, err
}

func (r *Reloader) run(ctx context.Context, trigger string) (Result, error) {
	ctx = context.WithValue(ctx, contextkeys.ReloadTriggerKey, trigger)
	res := Result{Trigger: trigger, Started: time.Now()}

	err := r.session.Reload(observability.WithLogger(ctx, r.log.WithField("trigger", trigger)))

	res.Finished = time.Now()
	res.Classes = make(map[string]int)
	for _, spec := range r.session.Specs() {
		res.Classes[spec.PackagePath] = spec.PluginRegistry.Len()
	}
	if err != nil {
		res.Error = err.Error()
	}

	r.metrics.RecordReload(trigger, err)
	entry := r.log.WithFields(logrus.Fields{
		"trigger":  trigger,
		"duration": res.Finished.Sub(res.Started),
		"classes":  res.Classes,
	})
	if err != nil {
		entry.WithError(err).Warn("Plugin reload finished with errors")
	} else {
		entry.Info("Plugins reloaded")
	}

	r.mu.Lock()
	r.last = &res
	r.mu.Unlock()
	return res, err
}

// Last returns the most recent reload result
func (r *Reloader) Last() (Result, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.last == nil {
		return Result{}, false
	}
	return *r.last, true
}

// TriggerFromContext returns the reload trigger carried by ctx, if any
func TriggerFromContext(ctx context.Context) string {
	trigger, _ := ctx.Value(contextkeys.ReloadTriggerKey).(string)
	return trigger
}
