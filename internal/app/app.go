package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/chrissnell/dsvalidate/internal/log"
	"github.com/chrissnell/dsvalidate/internal/render"
	"github.com/chrissnell/dsvalidate/internal/validation"
	"github.com/chrissnell/dsvalidate/pkg/config"
	"github.com/chrissnell/dsvalidate/pkg/grid"
	"github.com/chrissnell/dsvalidate/pkg/zarr"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options narrows what Run does
type Options struct {
	// OutputDir is prepended to relative run outputs
	OutputDir string
	// Only restricts Run to the named runs
	Only []string
}

// App executes the configured validation runs
type App struct {
	configProvider config.ConfigProvider
	logger         *zap.SugaredLogger
	opts           Options

	// open loads a configured dataset; replaced in tests
	open func(ctx context.Context, store config.StoreData, d config.DatasetData) (*grid.Dataset, io.Closer, error)
}

// New creates a new application instance
func New(configProvider config.ConfigProvider, logger *zap.SugaredLogger, opts Options) *App {
	return &App{
		configProvider: configProvider,
		logger:         logger,
		opts:           opts,
		open:           openDataset,
	}
}

// Run executes every selected run in configuration order and stops at the
// first failure. SIGINT and SIGTERM cancel the run in progress.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := a.configProvider.LoadConfig()
	if err != nil {
		return err
	}

	runs, err := selectRuns(cfg.Runs, a.opts.Only)
	if err != nil {
		return err
	}

	s := &session{app: a, cfg: cfg, datasets: map[string]*grid.Dataset{}}
	defer s.close()

	for _, run := range runs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.execute(ctx, run); err != nil {
			return fmt.Errorf("run %s: %w", run.Name, err)
		}
	}
	log.Infof("completed %d runs", len(runs))
	return nil
}

func selectRuns(all []config.RunData, only []string) ([]config.RunData, error) {
	if len(only) == 0 {
		return all, nil
	}
	byName := make(map[string]config.RunData, len(all))
	for _, r := range all {
		byName[r.Name] = r
	}
	out := make([]config.RunData, 0, len(only))
	for _, name := range only {
		r, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("no run named %q in the configuration", name)
		}
		out = append(out, r)
	}
	return out, nil
}

// session caches opened datasets across the runs of one Run call
type session struct {
	app      *App
	cfg      *config.ConfigData
	datasets map[string]*grid.Dataset
	closers  []io.Closer
}

func (s *session) close() {
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			s.app.logger.Warnf("closing store: %v", err)
		}
	}
}

func (s *session) dataset(ctx context.Context, id string) (*grid.Dataset, error) {
	if ds, ok := s.datasets[id]; ok {
		return ds, nil
	}
	for _, d := range s.cfg.Datasets {
		if d.ID != id {
			continue
		}
		ds, closer, err := s.app.open(ctx, s.cfg.Store, d)
		if err != nil {
			return nil, fmt.Errorf("opening dataset %s: %w", id, err)
		}
		if closer != nil {
			s.closers = append(s.closers, closer)
		}
		s.datasets[id] = ds
		return ds, nil
	}
	return nil, fmt.Errorf("dataset %q is not configured: %w", id, validation.ErrMissingDataset)
}

// role returns the dataset bound to role, or nil when the run leaves it out
func (s *session) role(ctx context.Context, run config.RunData, role string) (*grid.Dataset, error) {
	id, ok := run.Datasets[role]
	if !ok {
		return nil, nil
	}
	return s.dataset(ctx, id)
}

func (s *session) periods(run config.RunData) (validation.Periods, error) {
	byLabel := make(map[string]config.PeriodData, len(s.cfg.Periods))
	for _, p := range s.cfg.Periods {
		byLabel[p.Label] = p
	}

	selected := s.cfg.Periods
	if len(run.Periods) > 0 {
		selected = make([]config.PeriodData, len(run.Periods))
		for i, label := range run.Periods {
			selected[i] = byLabel[label]
		}
	}

	ps := make([]validation.Period, len(selected))
	for i, p := range selected {
		ps[i] = validation.Period{Label: p.Label, Start: p.Start, End: p.End}
	}
	return validation.NewPeriods(ps...)
}

func (s *session) execute(ctx context.Context, run config.RunData) error {
	runLog := s.app.logger.With("run_id", uuid.NewString(), "run", run.Name, "kind", run.Kind)
	start := time.Now()
	runLog.Infow("starting run", "variable", run.Variable, "ssp", run.SSP)

	var (
		fig *render.Figure
		err error
	)
	switch run.Kind {
	case config.KindClimo:
		fig, err = s.climo(ctx, run)
	case config.KindGMST:
		fig, err = s.gmst(ctx, run)
	case config.KindDiff:
		fig, err = s.diff(ctx, run)
	default:
		err = fmt.Errorf("run kind %q: %w", run.Kind, validation.ErrUnknownSelector)
	}
	if err != nil {
		runLog.Errorw("run failed", "error", err)
		return err
	}

	out := run.Output
	if s.app.opts.OutputDir != "" && !filepath.IsAbs(out) {
		out = filepath.Join(s.app.opts.OutputDir, out)
	}
	if dir := filepath.Dir(out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}
	if err := fig.Save(out); err != nil {
		return err
	}
	runLog.Infow("wrote figure", "output", out, "elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

func (s *session) climo(ctx context.Context, run config.RunData) (*render.Figure, error) {
	metric, err := validation.ParseMetric(run.Metric)
	if err != nil {
		return nil, err
	}
	periods, err := s.periods(run)
	if err != nil {
		return nil, err
	}
	future, err := s.role(ctx, run, "future")
	if err != nil {
		return nil, err
	}
	if future == nil {
		return nil, fmt.Errorf("climatology needs a future dataset: %w", validation.ErrMissingDataset)
	}
	hist, err := s.role(ctx, run, "historical")
	if err != nil {
		return nil, err
	}

	layout := validation.LayoutFutureOnly
	if hist != nil {
		layout = validation.LayoutWithHistorical
	}
	res, err := validation.SummarizePeriods(ctx, validation.ClimoRequest{
		Layout:     layout,
		Future:     future,
		Historical: hist,
		Periods:    periods,
		Variable:   run.Variable,
		Metric:     metric,
		VMin:       run.VMin,
		VMax:       run.VMax,
		DataType:   run.DataType,
		SSP:        run.SSP,
		Units:      validation.Units(s.cfg.Units),
	})
	if err != nil {
		return nil, err
	}
	return render.ClimoFigure(res, validation.ColormapSequential)
}

// gmstRoles pairs each dataset role with its trace
var gmstRoles = []struct {
	role   string
	source validation.Source
	period validation.PeriodKind
}{
	{"cmip6_historical", validation.SourceModel, validation.Historical},
	{"cmip6_future", validation.SourceModel, validation.Future},
	{"bc_historical", validation.SourceBiasCorrected, validation.Historical},
	{"bc_future", validation.SourceBiasCorrected, validation.Future},
	{"ds_historical", validation.SourceDownscaled, validation.Historical},
	{"ds_future", validation.SourceDownscaled, validation.Future},
}

func (s *session) gmst(ctx context.Context, run config.RunData) (*render.Figure, error) {
	req := validation.GMSTRequest{Variable: run.Variable, SSP: run.SSP}
	for _, r := range gmstRoles {
		ds, err := s.role(ctx, run, r.role)
		if err != nil {
			return nil, err
		}
		if ds == nil {
			continue
		}
		req.Traces = append(req.Traces, validation.GMSTTrace{Source: r.source, Period: r.period, Dataset: ds})
	}

	res, err := validation.GMSTDiagnostic(ctx, req)
	if err != nil {
		return nil, err
	}
	return render.GMSTFigure(res, run.Variable)
}

func (s *session) diff(ctx context.Context, run config.RunData) (*render.Figure, error) {
	mode, err := validation.ParseDiffMode(run.PlotType)
	if err != nil {
		return nil, err
	}
	dataType, err := validation.ParseDataType(run.DataType)
	if err != nil {
		return nil, err
	}
	periods, err := s.periods(run)
	if err != nil {
		return nil, err
	}

	req := validation.DiffRequest{
		Mode:       mode,
		DataType:   dataType,
		Variable:   run.Variable,
		Periods:    periods,
		TimePeriod: run.TimePeriod,
		Robust:     run.Robust,
		SSP:        run.SSP,
		Units:      validation.Units(s.cfg.Units),
	}
	for role, dst := range map[string]**grid.Dataset{
		"bc_future":     &req.FutureBC,
		"ds_future":     &req.FutureDS,
		"bc_historical": &req.HistBC,
		"ds_historical": &req.HistDS,
	} {
		if *dst, err = s.role(ctx, run, role); err != nil {
			return nil, err
		}
	}

	res, err := validation.Differences(ctx, req)
	if err != nil {
		return nil, err
	}
	return render.DiffFigure(res)
}

// openDataset opens a configured zarr store, from Cloud Storage when the
// URL says so and from the local file system otherwise
func openDataset(ctx context.Context, store config.StoreData, d config.DatasetData) (*grid.Dataset, io.Closer, error) {
	if strings.HasPrefix(d.URL, "gs://") {
		s, err := zarr.OpenGCS(ctx, d.URL, zarr.Options{Token: store.Token, Check: store.Check})
		if err != nil {
			return nil, nil, err
		}
		ds, err := zarr.Open(ctx, s, d.ID)
		if err != nil {
			s.Close()
			return nil, nil, err
		}
		return ds, s, nil
	}

	s, err := zarr.OpenDir(d.URL)
	if err != nil {
		return nil, nil, err
	}
	ds, err := zarr.Open(ctx, s, d.ID)
	return ds, nil, err
}
