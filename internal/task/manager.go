package task

import (
	"fmt"
	"os"
	"path/filepath"

	"cosmossdk.io/math"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/rovshanmuradov/lpvault/internal/fixedpoint"
	"github.com/rovshanmuradov/lpvault/internal/types"
)

// Manager loads and parses Task definitions.
type Manager struct {
	logger *zap.Logger
}

// TaskConfig represents the structure of tasks YAML file
type TaskConfig struct {
	Tasks []struct {
		TaskName  string `yaml:"task_name"`
		Account   string `yaml:"account"`
		Operation string `yaml:"operation"`
		Amount    string `yaml:"amount"`
		Target    string `yaml:"target"`
		MinOut    string `yaml:"min_out"`
	} `yaml:"tasks"`
}

// NewManager constructs a Manager with the given logger.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{logger: logger.Named("task")}
}

// LoadTasksYAML reads tasks from a YAML file. Amounts are decimal strings.
// Any invalid task rejects the whole file, since later steps depend on
// earlier ones.
func (m *Manager) LoadTasksYAML(path string) ([]*Task, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return m.ParseTasks(data)
}

// ParseTasks decodes a YAML task list.
func (m *Manager) ParseTasks(data []byte) ([]*Task, error) {
	var config TaskConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(config.Tasks) == 0 {
		return nil, fmt.Errorf("no tasks found in configuration")
	}

	tasks := make([]*Task, 0, len(config.Tasks))
	for i, raw := range config.Tasks {
		name := raw.TaskName
		if name == "" {
			name = fmt.Sprintf("task-%d", i+1)
		}
		op, err := parseOperation(raw.Operation)
		if err != nil {
			return nil, fmt.Errorf("task %q: %w", name, err)
		}
		amount, err := fixedpoint.Parse(raw.Amount, op == OperationReportPnL)
		if err != nil {
			return nil, fmt.Errorf("task %q: amount: %w", name, err)
		}
		minOut := math.ZeroInt()
		if raw.MinOut != "" {
			if minOut, err = fixedpoint.Parse(raw.MinOut, false); err != nil {
				return nil, fmt.Errorf("task %q: min_out: %w", name, err)
			}
		}
		target := types.ZeroAddress
		if raw.Target != "" {
			if target, err = types.ParseAddress(raw.Target); err != nil {
				return nil, fmt.Errorf("task %q: target: %w", name, err)
			}
		}
		account, err := types.ParseAddress(raw.Account)
		if err != nil {
			return nil, fmt.Errorf("task %q: account: %w", name, err)
		}

		task := &Task{
			ID:        i,
			TaskName:  name,
			Account:   account,
			Operation: op,
			Amount:    amount,
			Target:    target,
			MinOut:    minOut,
		}
		if err := task.Validate(); err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}

	m.logger.Info("Loaded tasks", zap.Int("count", len(tasks)))
	return tasks, nil
}
