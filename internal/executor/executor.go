// Package executor runs scheduled tasks: fetching portal pages,
// persisting raw HTML, and turning it into processed entities. It
// never returns errors across its boundary; every failure is encoded
// in the task's result and left to the scheduler to judge.
package executor

import (
	"context"
	"fmt"
	"log"

	"github.com/karaalv/kenya-ecitizen-services-dataset/internal/config"
	"github.com/karaalv/kenya-ecitizen-services-dataset/internal/model"
)

// Fetcher downloads one page. Satisfied by fetch.Client; tests stub it.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Executor routes tasks to scope handlers and persists handler state
// after every task, so processed entities survive restarts alongside
// the scheduler's own snapshot.
type Executor struct {
	cfg    config.Config
	client Fetcher
	logger *log.Logger

	faq        *faqHandler
	agencies   *agenciesHandler
	ministries *ministriesHandler

	scopes map[model.Phase]func(context.Context, model.Task) (model.Discovered, error)
}

// New builds an executor, reloading any previously processed entities
// from the data directory.
func New(cfg config.Config, client Fetcher, logger *log.Logger) *Executor {
	e := &Executor{
		cfg:        cfg,
		client:     client,
		logger:     logger,
		faq:        newFAQHandler(cfg, logger),
		agencies:   newAgenciesHandler(cfg, logger),
		ministries: newMinistriesHandler(cfg, logger),
	}
	e.scopes = map[model.Phase]func(context.Context, model.Task) (model.Discovered, error){
		model.PhaseFAQ:              e.faqScope,
		model.PhaseAgenciesList:     e.agenciesScope,
		model.PhaseMinistriesList:   e.ministriesListScope,
		model.PhaseMinistryPages:    e.ministryPagesScope,
		model.PhaseMinistryServices: e.servicesScope,
		model.PhaseFinalisation:     e.finalisationScope,
	}
	return e
}

// Execute runs one task to completion. The returned result carries
// success or the failure message; the error channel is deliberately
// absent so a flaky page can never crash the driver loop.
func (e *Executor) Execute(ctx context.Context, task model.Task) model.Result {
	if err := model.ValidateTask(task); err != nil {
		return e.failed(task, err)
	}
	scope, ok := e.scopes[task.Scope]
	if !ok {
		return e.failed(task, fmt.Errorf("no handler for scope %q", task.Scope))
	}

	discovered, err := scope(ctx, task)
	if saveErr := e.saveHandlerState(); saveErr != nil && err == nil {
		err = saveErr
	}
	if err != nil {
		return e.failed(task, err)
	}
	return model.Result{Task: task, Success: true, Discovered: discovered}
}

func (e *Executor) failed(task model.Task, err error) model.Result {
	e.logger.Printf("executor: task failed (%s): %v", task.Log(), err)
	return model.Result{Task: task, Success: false, ErrorMessage: err.Error()}
}

func (e *Executor) saveHandlerState() error {
	if err := e.faq.saveState(); err != nil {
		return fmt.Errorf("save faq state: %w", err)
	}
	if err := e.agencies.saveState(); err != nil {
		return fmt.Errorf("save agencies state: %w", err)
	}
	if err := e.ministries.saveState(); err != nil {
		return fmt.Errorf("save ministries state: %w", err)
	}
	return nil
}

func (e *Executor) faqScope(ctx context.Context, task model.Task) (model.Discovered, error) {
	switch task.Operation {
	case model.OpFAQScrape:
		if err := e.faq.scrape(ctx, e.client); err != nil {
			return nil, err
		}
	case model.OpFAQProcess:
		if err := e.faq.process(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unrecognised operation %q for FAQ scope", task.Operation)
	}
	return model.EmptyDiscovered{}, nil
}

func (e *Executor) agenciesScope(ctx context.Context, task model.Task) (model.Discovered, error) {
	switch task.Operation {
	case model.OpAgenciesListScrape:
		if err := e.agencies.scrape(ctx, e.client); err != nil {
			return nil, err
		}
	case model.OpAgenciesListProcess:
		if err := e.agencies.process(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unrecognised operation %q for agencies scope", task.Operation)
	}
	return model.EmptyDiscovered{}, nil
}

func (e *Executor) ministriesListScope(ctx context.Context, task model.Task) (model.Discovered, error) {
	switch task.Operation {
	case model.OpMinistriesListScrape:
		if err := e.ministries.scrapeList(ctx, e.client); err != nil {
			return nil, err
		}
		return model.EmptyDiscovered{}, nil
	case model.OpMinistriesListProcess:
		ids, err := e.ministries.processList()
		if err != nil {
			return nil, err
		}
		return model.MinistryIDs{IDs: ids}, nil
	default:
		return nil, fmt.Errorf("unrecognised operation %q for ministries list scope", task.Operation)
	}
}

func (e *Executor) ministryPagesScope(ctx context.Context, task model.Task) (model.Discovered, error) {
	switch task.Operation {
	case model.OpMinistryPageScrape:
		payload := task.Payload.(model.MinistryPayload)
		hierarchy, err := e.ministries.scrapePage(ctx, e.client, payload.MinistryID)
		if err != nil {
			return nil, err
		}
		return hierarchy, nil
	case model.OpMinistryPageProcess:
		payload := task.Payload.(model.MinistryListPayload)
		ids, err := e.ministries.processPages(ctx, payload.Ministries, e.cfg.Fetch.BatchWorkers)
		if err != nil {
			return nil, err
		}
		return model.MinistryIDs{IDs: ids}, nil
	default:
		return nil, fmt.Errorf("unrecognised operation %q for ministry pages scope", task.Operation)
	}
}

func (e *Executor) servicesScope(ctx context.Context, task model.Task) (model.Discovered, error) {
	switch task.Operation {
	case model.OpServiceScrape:
		payload := task.Payload.(model.ServicePayload)
		if err := e.ministries.scrapeServices(ctx, e.client, payload); err != nil {
			return nil, err
		}
		return model.ServiceScraped{
			MinistryID:   payload.MinistryID,
			DepartmentID: payload.DepartmentID,
			AgencyID:     payload.AgencyID,
		}, nil
	case model.OpServicesProcess:
		payload := task.Payload.(model.ServiceListPayload)
		processed, err := e.ministries.processServices(ctx, payload, e.cfg.Fetch.BatchWorkers)
		if err != nil {
			return nil, err
		}
		return processed, nil
	default:
		return nil, fmt.Errorf("unrecognised operation %q for services scope", task.Operation)
	}
}

func (e *Executor) finalisationScope(_ context.Context, task model.Task) (model.Discovered, error) {
	if task.Operation != model.OpFinalisationChecks {
		return nil, fmt.Errorf("unrecognised operation %q for finalisation scope", task.Operation)
	}
	if err := e.finalise(); err != nil {
		return nil, err
	}
	return model.EmptyDiscovered{}, nil
}
