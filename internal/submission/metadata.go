package submission

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// metadataFile is the per-submission descriptor consumed by the leaderboard.
type metadataFile struct {
	AgentURL            string       `yaml:"agent_url"`
	AgentDisplayName    string       `yaml:"agent_display_name"`
	AgentOrgDisplayName string       `yaml:"agent_org_display_name"`
	Models              []modelEntry `yaml:"models"`
}

type modelEntry struct {
	ModelName           string `yaml:"model_name"`
	ModelProvider       string `yaml:"model_provider"`
	ModelDisplayName    string `yaml:"model_display_name"`
	ModelOrgDisplayName string `yaml:"model_org_display_name"`
}

// writeMetadata writes metadata.yaml into a submission directory. An
// existing file is kept as-is, matching leaderboard convention for
// resubmissions.
func (m *Merger) writeMetadata(submissionDir, model string) error {
	path := filepath.Join(submissionDir, "metadata.yaml")
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	meta, _ := m.ModelMeta(model)
	doc := metadataFile{
		AgentURL:            m.Metadata.URL,
		AgentDisplayName:    m.Metadata.DisplayName,
		AgentOrgDisplayName: m.Metadata.OrgDisplayName,
		Models: []modelEntry{{
			ModelName:           meta.Name,
			ModelProvider:       meta.Provider,
			ModelDisplayName:    meta.DisplayName,
			ModelOrgDisplayName: meta.OrgDisplayName,
		}},
	}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing metadata.yaml: %w", err)
	}
	return nil
}
