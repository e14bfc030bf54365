package harness

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"starter/pkg/logging"
)

// LoadScenarios loads scenarios from a YAML file or from every YAML file below
// a directory. Scenarios without a name are named after their file.
func LoadScenarios(path string) ([]Scenario, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("scenario path does not exist: %s", path)
		}
		return nil, fmt.Errorf("failed to stat scenario path: %w", err)
	}

	var scenarios []Scenario
	if info.IsDir() {
		scenarios, err = loadScenariosFromDirectory(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load scenarios from directory: %w", err)
		}
	} else {
		scenario, err := loadScenarioFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load scenario from file: %w", err)
		}
		scenarios = append(scenarios, scenario)
	}

	if err := checkUniqueNames(scenarios); err != nil {
		return nil, err
	}

	logging.Debug("Runner", "Loaded %d scenario(s) from %s", len(scenarios), path)
	return scenarios, nil
}

func loadScenariosFromDirectory(dirPath string) ([]Scenario, error) {
	var scenarios []Scenario

	err := filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isYAMLFile(path) {
			return nil
		}

		scenario, err := loadScenarioFromFile(path)
		if err != nil {
			return fmt.Errorf("failed to load scenario from %s: %w", path, err)
		}
		scenarios = append(scenarios, scenario)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory %s: %w", dirPath, err)
	}

	sort.SliceStable(scenarios, func(i, j int) bool {
		return scenarios[i].Name < scenarios[j].Name
	})
	return scenarios, nil
}

func loadScenarioFromFile(filePath string) (Scenario, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return Scenario{}, fmt.Errorf("failed to read file: %w", err)
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return Scenario{}, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Name == "" {
		base := filepath.Base(filePath)
		scenario.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	scenario.sourcePath = filePath

	if err := validateScenario(scenario); err != nil {
		return Scenario{}, err
	}
	return scenario, nil
}

func validateScenario(scenario Scenario) error {
	if strings.TrimSpace(scenario.Command) == "" {
		return fmt.Errorf("scenario %q: command is required", scenario.Name)
	}
	if scenario.Timeout < 0 {
		return fmt.Errorf("scenario %q: timeout must not be negative", scenario.Name)
	}
	return nil
}

func checkUniqueNames(scenarios []Scenario) error {
	seen := make(map[string]string, len(scenarios))
	for _, s := range scenarios {
		if other, ok := seen[s.Name]; ok {
			return fmt.Errorf("duplicate scenario name %q in %s and %s", s.Name, other, s.sourcePath)
		}
		seen[s.Name] = s.sourcePath
	}
	return nil
}

func isYAMLFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// FilterScenarios returns the scenarios selected by the name and tag filters
// of config.
func FilterScenarios(scenarios []Scenario, config RunConfiguration) []Scenario {
	var filtered []Scenario
	for _, s := range scenarios {
		if config.Scenario != "" && !strings.Contains(s.Name, config.Scenario) {
			continue
		}
		if len(config.Tags) > 0 && !slices.ContainsFunc(s.Tags, func(tag string) bool {
			return slices.Contains(config.Tags, tag)
		}) {
			continue
		}
		filtered = append(filtered, s)
	}
	return filtered
}
