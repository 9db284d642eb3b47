package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/matelabs/mateview/internal/archive"
	"github.com/matelabs/mateview/internal/completion"
	"github.com/matelabs/mateview/internal/config"
	"github.com/matelabs/mateview/internal/contentstore"
	"github.com/matelabs/mateview/internal/httpapi"
	"github.com/matelabs/mateview/internal/interview"
	"github.com/matelabs/mateview/internal/ledger"
	"github.com/matelabs/mateview/internal/observability"
	"github.com/matelabs/mateview/internal/profile"
	"github.com/matelabs/mateview/internal/room"
	"github.com/matelabs/mateview/internal/rowquery"
	"github.com/matelabs/mateview/internal/session"
)

type StackInfo struct {
	CompletionMode string
	LedgerMode     string
	SaveMode       string
	PointsSource   string
}

type BuildResult struct {
	Config       config.Config
	API          *httpapi.Server
	Sessions     *session.Manager
	Orchestrator *room.Orchestrator
	Metrics      *observability.Metrics
	Stack        StackInfo

	// Cleanup should be called on shutdown to release external resources.
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)
	opWindow := observability.NewOpWindow(256)

	archiveStore, err := archive.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("archive init failed: %w", err)
	}

	completionClient, err := completion.NewClient(completion.Config{
		Mode:    cfg.CompletionMode,
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
	})
	if err != nil {
		_ = archiveStore.Close()
		return nil, fmt.Errorf("completion client init failed: %w", err)
	}

	ledgerClient, err := ledger.New(ledger.Config{
		Mode:     cfg.LedgerMode,
		RelayURL: cfg.LedgerRelayURL,
	})
	if err != nil {
		_ = archiveStore.Close()
		return nil, fmt.Errorf("ledger init failed: %w", err)
	}

	var store contentstore.Store
	if cfg.ContentStoreURL != "" {
		store, err = contentstore.NewHTTPStore(cfg.ContentStoreURL, cfg.IPFSGatewayURL, cfg.ContentStoreAPIKey)
		if err != nil {
			_ = archiveStore.Close()
			return nil, fmt.Errorf("content store init failed: %w", err)
		}
	} else {
		store = contentstore.NewMockStore()
	}

	var rows *rowquery.Client
	if cfg.RowQueryGatewayURL != "" {
		rows, err = rowquery.NewClient(cfg.RowQueryGatewayURL)
		if err != nil {
			_ = archiveStore.Close()
			return nil, fmt.Errorf("row query client init failed: %w", err)
		}
	}

	gateway := interview.NewGateway(completionClient, cfg.CompletionModel, cfg.CompletionTemperature)

	reconciler, err := interview.NewReconciler(ledgerClient, store, interview.SaveMode(cfg.SaveMode))
	if err != nil {
		_ = archiveStore.Close()
		return nil, fmt.Errorf("reconciler init failed: %w", err)
	}

	// Without a row query gateway the confirmed-points read has to come from
	// the ledger itself.
	pointsSource := interview.PointsSource(cfg.PointsSource)
	if pointsSource == interview.PointsFromRowQuery && rows == nil {
		pointsSource = interview.PointsFromLedger
	}
	points, err := interview.NewPointsReader(pointsSource, ledgerClient, rows, cfg.RowQueryTable)
	if err != nil {
		_ = archiveStore.Close()
		return nil, fmt.Errorf("points reader init failed: %w", err)
	}

	sessions := session.NewManager(cfg.SessionInactivityTimeout)

	orchestrator, err := room.NewOrchestrator(room.Config{
		Sessions:   sessions,
		Ledger:     ledgerClient,
		Store:      store,
		Rows:       rows,
		Gateway:    gateway,
		Reconciler: reconciler,
		Points:     points,
		Archive:    archiveStore,
		Metrics:    metrics,
		OpWindow:   opWindow,
		Table:      cfg.RowQueryTable,
	})
	if err != nil {
		_ = archiveStore.Close()
		return nil, fmt.Errorf("orchestrator init failed: %w", err)
	}

	profiles := profile.NewResolver(ledgerClient, store)

	api := httpapi.New(cfg, sessions, orchestrator, profiles, archiveStore, metrics, opWindow)

	cleanup := func() error {
		var errs []string
		if err := archiveStore.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if len(errs) > 0 {
			return fmt.Errorf("%s", strings.Join(errs, "; "))
		}
		return nil
	}

	return &BuildResult{
		Config:       cfg,
		API:          api,
		Sessions:     sessions,
		Orchestrator: orchestrator,
		Metrics:      metrics,
		Stack: StackInfo{
			CompletionMode: cfg.CompletionMode,
			LedgerMode:     cfg.LedgerMode,
			SaveMode:       cfg.SaveMode,
			PointsSource:   string(pointsSource),
		},
		Cleanup: cleanup,
	}, nil
}
