// Package bulkimport ingests CSV files of violation records dropped into a
// directory, either as a one-shot scan or watching for new files. Processed
// files are moved to done/ (or failed/ when nothing imported).
package bulkimport

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"tvms/managers"
	"tvms/models"

	"github.com/fsnotify/fsnotify"
)

// CSV columns, in order. A header row starting with "vehicle_number" is
// skipped.
const (
	colVehicle = iota
	colTypeID
	colAreaID
	colOfficerID
	colDate
	colFine
	colNotes
	numCols
)

// ParseRecord turns one CSV record into a violation. The date accepts
// RFC3339 or a bare 2006-01-02 day.
func ParseRecord(rec []string) (*models.Violation, error) {
	if len(rec) < numCols-1 { // notes column is optional
		return nil, fmt.Errorf("expected at least %d columns, got %d", numCols-1, len(rec))
	}
	typeID, err := strconv.ParseUint(strings.TrimSpace(rec[colTypeID]), 10, 64)
	if err != nil || typeID == 0 {
		return nil, fmt.Errorf("invalid type id %q", rec[colTypeID])
	}
	areaID, err := strconv.ParseUint(strings.TrimSpace(rec[colAreaID]), 10, 64)
	if err != nil || areaID == 0 {
		return nil, fmt.Errorf("invalid area id %q", rec[colAreaID])
	}
	officerID, err := strconv.ParseUint(strings.TrimSpace(rec[colOfficerID]), 10, 64)
	if err != nil || officerID == 0 {
		return nil, fmt.Errorf("invalid officer id %q", rec[colOfficerID])
	}
	rawDate := strings.TrimSpace(rec[colDate])
	date, err := time.Parse(time.RFC3339, rawDate)
	if err != nil {
		date, err = time.Parse("2006-01-02", rawDate)
		if err != nil {
			return nil, fmt.Errorf("invalid date %q (want RFC3339 or YYYY-MM-DD)", rawDate)
		}
	}
	fine, err := strconv.ParseFloat(strings.TrimSpace(rec[colFine]), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid fine amount %q", rec[colFine])
	}
	notes := ""
	if len(rec) > colNotes {
		notes = strings.TrimSpace(rec[colNotes])
	}
	return &models.Violation{
		VehicleNumber: strings.TrimSpace(rec[colVehicle]),
		TypeID:        uint(typeID),
		AreaID:        uint(areaID),
		OfficerID:     uint(officerID),
		ViolationDate: date,
		FineAmount:    fine,
		Status:        models.StatusUnpaid,
		Notes:         notes,
	}, nil
}

// ImportFile reads one CSV file and creates a violation per valid row.
// Invalid rows are logged and skipped; the file as a whole only fails on an
// IO error.
func ImportFile(vm *managers.ViolationManager, path string) (imported, skipped int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	line := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return imported, skipped, fmt.Errorf("read %s: %w", path, err)
		}
		line++
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "vehicle_number") {
			continue // header
		}
		v, perr := ParseRecord(rec)
		if perr != nil {
			log.Printf("%s line %d: %v", filepath.Base(path), line, perr)
			skipped++
			continue
		}
		if _, cerr := vm.Create(v); cerr != nil {
			log.Printf("%s line %d: %v", filepath.Base(path), line, cerr)
			skipped++
			continue
		}
		imported++
	}
	return imported, skipped, nil
}

// Runner drains a drop directory with a bounded worker pool.
type Runner struct {
	Violations *managers.ViolationManager
	Dir        string
	Workers    int
}

func (r *Runner) workers() int {
	if r.Workers <= 0 {
		return 4
	}
	return r.Workers
}

func listCSVFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out
}

func (r *Runner) processFile(name string) {
	path := filepath.Join(r.Dir, name)
	imported, skipped, err := ImportFile(r.Violations, path)
	if err != nil {
		log.Printf("import %s failed: %v", name, err)
		r.moveTo(name, "failed")
		return
	}
	log.Printf("import %s: %d imported, %d skipped", name, imported, skipped)
	if imported == 0 {
		r.moveTo(name, "failed")
		return
	}
	r.moveTo(name, "done")
}

func (r *Runner) moveTo(name, sub string) {
	dst := filepath.Join(r.Dir, sub)
	if err := os.MkdirAll(dst, 0755); err != nil {
		log.Printf("mkdir %s: %v", dst, err)
		return
	}
	if err := os.Rename(filepath.Join(r.Dir, name), filepath.Join(dst, name)); err != nil {
		log.Printf("move %s: %v", name, err)
	}
}

// Scan imports every CSV currently in the directory.
func (r *Runner) Scan() {
	r.drain(listCSVFiles(r.Dir), nil)
}

func (r *Runner) drain(initial []string, extra <-chan string) {
	fileCh := make(chan string, 256)
	var wg sync.WaitGroup
	for i := 0; i < r.workers(); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range fileCh {
				r.processFile(name)
			}
		}()
	}
	for _, name := range initial {
		fileCh <- name
	}
	if extra != nil {
		for name := range extra {
			fileCh <- name
		}
	}
	close(fileCh)
	wg.Wait()
}

// Watch processes existing files then blocks, importing each new CSV after a
// short debounce so partially written files are not picked up.
func (r *Runner) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(r.Dir); err != nil {
		return err
	}
	log.Printf("Watching %s (debounced) ...", r.Dir)

	fileCh := make(chan string, 256)
	go func() {
		defer close(fileCh)
		pending := map[string]time.Time{}
		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&fsnotify.Create == fsnotify.Create {
					name := filepath.Base(ev.Name)
					if strings.EqualFold(filepath.Ext(name), ".csv") {
						pending[name] = time.Now()
					}
				}
			case <-ticker.C:
				now := time.Now()
				for name, t := range pending {
					if now.Sub(t) > 300*time.Millisecond { // stable
						fileCh <- name
						delete(pending, name)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Printf("watch error: %v", err)
			}
		}
	}()

	r.drain(listCSVFiles(r.Dir), fileCh)
	return nil
}
