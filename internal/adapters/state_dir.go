package adapters

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"gopkg.in/yaml.v3"

	"devkit-installer/internal/types"
)

const stateRecordsDir = "records"

// DirStateAdapter persists installation records as one YAML file per
// component. Saves go through a staging file and rename, so a crash
// leaves either the previous record or the new one, never a torn file.
type DirStateAdapter struct {
	Dir string

	mu sync.Mutex
}

func NewDirStateAdapter(dir string) *DirStateAdapter {
	return &DirStateAdapter{Dir: dir}
}

func (a *DirStateAdapter) Save(record types.InstallationRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if strings.TrimSpace(record.Component) == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("installation record has no component name")
	}
	dir := filepath.Join(a.Dir, stateRecordsDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("cannot create state directory").
			WithCause(err)
	}
	data, err := yaml.Marshal(record)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("cannot encode installation record").
			WithCause(err)
	}
	path := a.recordPath(record.Component)
	staging := path + ".staging"
	if err := os.WriteFile(staging, data, 0644); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("cannot stage installation record").
			WithCause(err)
	}
	if err := os.Rename(staging, path); err != nil {
		_ = os.Remove(staging)
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("cannot publish installation record").
			WithCause(err)
	}
	return nil
}

func (a *DirStateAdapter) Load(component string) (types.InstallationRecord, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.load(a.recordPath(component))
}

// List returns every persisted record, sorted by component name.
func (a *DirStateAdapter) List() ([]types.InstallationRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	dir := filepath.Join(a.Dir, stateRecordsDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("cannot read state directory").
			WithCause(err)
	}
	var records []types.InstallationRecord
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		record, ok, err := a.load(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		if ok {
			records = append(records, record)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Component < records[j].Component
	})
	return records, nil
}

func (a *DirStateAdapter) load(path string) (types.InstallationRecord, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return types.InstallationRecord{}, false, nil
		}
		return types.InstallationRecord{}, false, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("cannot read installation record").
			WithCause(err)
	}
	var record types.InstallationRecord
	if err := yaml.Unmarshal(data, &record); err != nil {
		return types.InstallationRecord{}, false, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("installation record is corrupted").
			WithCause(err)
	}
	return record, true, nil
}

func (a *DirStateAdapter) recordPath(component string) string {
	return filepath.Join(a.Dir, stateRecordsDir, sanitizeFileName(component)+".yaml")
}

// sanitizeFileName keeps component names usable as file names without
// letting a hostile name climb out of the records directory.
func sanitizeFileName(name string) string {
	replacer := strings.NewReplacer("/", "_", string(filepath.Separator), "_", "..", "_")
	return replacer.Replace(strings.TrimSpace(name))
}
