package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/alextrx818/matchpipe/internal/adapter/gateway/notify"
	"github.com/alextrx818/matchpipe/internal/adapter/gateway/storage"
	"github.com/alextrx818/matchpipe/internal/app"
	"github.com/alextrx818/matchpipe/internal/app/config"
	"github.com/alextrx818/matchpipe/internal/domain/civil"
	"github.com/alextrx818/matchpipe/internal/infra/archive"
	"github.com/alextrx818/matchpipe/internal/infra/framelog"
	mpfs "github.com/alextrx818/matchpipe/internal/infra/fs"
	"github.com/alextrx818/matchpipe/internal/infra/ledger"
	"github.com/alextrx818/matchpipe/internal/infra/suppress"
	"github.com/alextrx818/matchpipe/internal/pipeline"
	"github.com/alextrx818/matchpipe/internal/stages/alert"
	"github.com/alextrx818/matchpipe/internal/stages/clean"
	"github.com/alextrx818/matchpipe/internal/stages/convert"
	"github.com/alextrx818/matchpipe/internal/stages/fetch"
	"github.com/alextrx818/matchpipe/internal/stages/merge"
	"github.com/alextrx818/matchpipe/internal/stages/monitor"
	"github.com/alextrx818/matchpipe/internal/stages/sportsapi"
)

// runtime assembles one stage invocation's collaborators from the
// loaded configuration.
type runtime struct {
	cfg   *config.AppConfig
	paths app.Paths
	fsys  afero.Fs
	clock civil.Clock
	zone  civil.Zone
	led   *ledger.Ledger
	store storage.ObjectStore
}

func newRuntime(ctx context.Context) (*runtime, error) {
	rt := &runtime{
		cfg:   globalConfig,
		paths: globalPaths,
		fsys:  afero.NewOsFs(),
		clock: civil.SystemClock{},
	}

	for _, dir := range []string{rt.paths.Logs, rt.paths.Locks, rt.paths.Rotation, rt.paths.Notified} {
		if err := rt.fsys.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	zone, err := civil.LoadZone(rt.cfg.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("load time zone: %w", err)
	}
	rt.zone = zone

	rt.led, err = ledger.Open(ledger.Config{
		Path:            rt.paths.Ledger,
		Policy:          ledger.SelectionPolicy(rt.cfg.Ledger.Selection),
		DeadLetterAfter: rt.cfg.Ledger.DeadLetterAfter,
	})
	if err != nil {
		return nil, err
	}

	rt.store, err = rt.objectStore(ctx)
	if err != nil {
		rt.led.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *runtime) Close() error { return rt.led.Close() }

// objectStore backs rotation with S3 when a bucket is configured and
// a local directory twin otherwise.
func (rt *runtime) objectStore(ctx context.Context) (storage.ObjectStore, error) {
	if rt.cfg.Archive.Bucket == "" {
		return storage.NewLocalObjectStore(rt.fsys, rt.cfg.Archive.LocalDir), nil
	}
	return storage.NewS3ObjectStore(ctx, storage.S3Config{
		BucketName: rt.cfg.Archive.Bucket,
		Region:     rt.cfg.Archive.Region,
		Endpoint:   rt.cfg.Archive.Endpoint,
	})
}

func (rt *runtime) frameLog(stage string) *framelog.Log {
	return framelog.New(rt.fsys, rt.paths.FrameLog(stage))
}

func (rt *runtime) locker(stage string) mpfs.CycleLocker {
	return mpfs.FlockLocker{Path: rt.paths.CycleLock(stage)}
}

func (rt *runtime) rotator(stage string) *archive.Rotator {
	sc := rt.cfg.Stage(stage)
	return archive.New(archive.Config{
		FS:        rt.fsys,
		StatePath: rt.paths.RotationState(stage),
		Stage:     stage,
		Folder:    sc.ArchiveFolder,
		Threshold: sc.RotationThreshold,
		Policy:    archive.Policy(sc.RotationPolicy),
		Store:     rt.store,
		Clock:     rt.clock,
		Zone:      rt.zone,
	})
}

func (rt *runtime) apiClient() *sportsapi.Client {
	return sportsapi.NewClient(rt.cfg.API)
}

// originRunner wires the fetch stage.
func (rt *runtime) originRunner() *pipeline.OriginRunner {
	return &pipeline.OriginRunner{
		Log:      rt.frameLog(pipeline.StageFetch),
		Producer: &fetch.Producer{Client: rt.apiClient()},
		Ledger:   rt.led,
		Rotator:  rt.rotator(pipeline.StageFetch),
		Locker:   rt.locker(pipeline.StageFetch),
		Clock:    rt.clock,
		Zone:     rt.zone,
		Trigger:  pipeline.ExecTrigger{},
	}
}

// stageRunner wires any downstream stage.
func (rt *runtime) stageRunner(stage string) (*pipeline.Runner, error) {
	transform, err := rt.transform(stage)
	if err != nil {
		return nil, err
	}
	return &pipeline.Runner{
		Stage:       stage,
		Predecessor: pipeline.Predecessor(stage),
		Upstream:    rt.frameLog(pipeline.Predecessor(stage)),
		Own:         rt.frameLog(stage),
		Transform:   transform,
		Ledger:      rt.led,
		Rotator:     rt.rotator(stage),
		Locker:      rt.locker(stage),
		Clock:       rt.clock,
		Zone:        rt.zone,
		Trigger:     pipeline.ExecTrigger{},
	}, nil
}

func (rt *runtime) transform(stage string) (pipeline.Transform, error) {
	switch stage {
	case pipeline.StageMerge:
		cachePath := filepath.Join(rt.paths.Var, "reference_cache.json")
		refs := sportsapi.NewReferenceCache(rt.apiClient(), rt.fsys, cachePath, rt.clock)
		return &merge.Transform{Refs: refs}, nil
	case pipeline.StageClean:
		return clean.Transform{}, nil
	case pipeline.StageConvert:
		return convert.Transform{}, nil
	case pipeline.StageMonitor:
		return monitor.Transform{}, nil
	case pipeline.StageAlertOvers:
		return rt.alertTransform(stage, alert.OversRule{})
	case pipeline.StageAlertUnderdog:
		return rt.alertTransform(stage, alert.UnderdogRule{})
	default:
		return nil, fmt.Errorf("unknown stage %q", stage)
	}
}

func (rt *runtime) alertTransform(stage string, rule alert.Rule) (pipeline.Transform, error) {
	store, err := suppress.Load(rt.fsys, rt.paths.SuppressionStore(stage), rt.cfg.Suppression.Retention, rt.clock)
	if err != nil {
		return nil, fmt.Errorf("%s: load suppression store: %w", stage, err)
	}
	return &alert.Transform{
		Rule:   rule,
		Store:  store,
		OwnLog: rt.frameLog(stage),
		Sender: rt.sender(),
		Clock:  rt.clock,
		Zone:   rt.zone,
	}, nil
}

// sender is the configured Telegram endpoint, or a log-only sender
// when no bot token is configured.
func (rt *runtime) sender() notify.Sender {
	if rt.cfg.Telegram.BotToken == "" {
		return logSender{}
	}
	return notify.NewTelegramSender(notify.TelegramConfig{
		BotToken: rt.cfg.Telegram.BotToken,
		ChatID:   rt.cfg.Telegram.ChatID,
	})
}

// logSender surfaces alerts in the log when messaging is not
// configured, keeping the alert stages runnable in development.
type logSender struct{}

func (logSender) Send(_ context.Context, text string) error {
	app.GetLogger().Info("alert (telegram not configured):\n%s", text)
	return nil
}
