package executor

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/karaalv/kenya-ecitizen-services-dataset/internal/config"
	"github.com/karaalv/kenya-ecitizen-services-dataset/internal/extract"
	"github.com/karaalv/kenya-ecitizen-services-dataset/internal/fileio"
)

// faqHandler owns the FAQ page: one raw file and the processed
// question/answer entries.
type faqHandler struct {
	seedURL string
	rawFile string
	outFile string
	logger  *log.Logger

	entries map[string]extract.FAQEntry
}

func newFAQHandler(cfg config.Config, logger *log.Logger) *faqHandler {
	h := &faqHandler{
		seedURL: cfg.Seeds.FAQURL,
		rawFile: filepath.Join(cfg.RawDir(), "faq", "faq.html"),
		outFile: filepath.Join(cfg.ProcessedDir(), "faq.json"),
		logger:  logger,
		entries: make(map[string]extract.FAQEntry),
	}
	loadEntities(h.outFile, &h.entries, logger)
	return h
}

func (h *faqHandler) scrape(ctx context.Context, client Fetcher) error {
	if fileio.Exists(h.rawFile) {
		h.logger.Printf("faq: raw file already present at %s", h.rawFile)
		return nil
	}
	html, err := client.Fetch(ctx, h.seedURL)
	if err != nil {
		return fmt.Errorf("scrape faq page: %w", err)
	}
	return fileio.WriteRaw(h.rawFile, []byte(html))
}

func (h *faqHandler) process() error {
	raw, err := os.ReadFile(h.rawFile)
	if err != nil {
		return fmt.Errorf("faq raw file not available for processing: %w", err)
	}
	entries, err := extract.ParseFAQ(string(raw))
	if err != nil {
		return fmt.Errorf("process faq page: %w", err)
	}
	for _, entry := range entries {
		h.entries[entry.FAQID] = entry
	}
	h.logger.Printf("faq: processed %d entries", len(entries))
	return nil
}

func (h *faqHandler) saveState() error {
	if len(h.entries) == 0 {
		return nil
	}
	return fileio.WriteJSON(h.outFile, h.entries)
}

// agenciesHandler owns the agencies listing: one raw file and the
// processed agency cards. Ministry and department links are attached
// later during finalisation.
type agenciesHandler struct {
	seedURL string
	rawFile string
	outFile string
	logger  *log.Logger

	entries map[string]extract.AgencyEntry
}

func newAgenciesHandler(cfg config.Config, logger *log.Logger) *agenciesHandler {
	h := &agenciesHandler{
		seedURL: cfg.Seeds.AgenciesURL,
		rawFile: filepath.Join(cfg.RawDir(), "agencies", "agencies_list.html"),
		outFile: filepath.Join(cfg.ProcessedDir(), "agencies.json"),
		logger:  logger,
		entries: make(map[string]extract.AgencyEntry),
	}
	loadEntities(h.outFile, &h.entries, logger)
	return h
}

func (h *agenciesHandler) scrape(ctx context.Context, client Fetcher) error {
	if fileio.Exists(h.rawFile) {
		h.logger.Printf("agencies: raw file already present at %s", h.rawFile)
		return nil
	}
	html, err := client.Fetch(ctx, h.seedURL)
	if err != nil {
		return fmt.Errorf("scrape agencies list: %w", err)
	}
	return fileio.WriteRaw(h.rawFile, []byte(html))
}

func (h *agenciesHandler) process() error {
	raw, err := os.ReadFile(h.rawFile)
	if err != nil {
		return fmt.Errorf("agencies raw file not available for processing: %w", err)
	}
	entries, err := extract.ParseAgenciesList(string(raw))
	if err != nil {
		return fmt.Errorf("process agencies list: %w", err)
	}
	for _, entry := range entries {
		h.entries[entry.AgencyNameHash] = entry
	}
	h.logger.Printf("agencies: processed %d entries", len(entries))
	return nil
}

func (h *agenciesHandler) saveState() error {
	if len(h.entries) == 0 {
		return nil
	}
	return fileio.WriteJSON(h.outFile, h.entries)
}
