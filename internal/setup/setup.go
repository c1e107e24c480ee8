// Package setup registers the RealDiag MCP server with desktop MCP clients.
package setup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// DefaultServerName is the key the server is registered under.
const DefaultServerName = "realdiag"

// ClientConfig is the desktop client configuration file. Keys other than
// mcpServers are carried through untouched.
type ClientConfig struct {
	MCPServers map[string]MCPServerConfig
	other      map[string]json.RawMessage
}

// MCPServerConfig represents a single MCP server configuration.
type MCPServerConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// Options controls Register.
type Options struct {
	ConfigPath string // Client config file; empty resolves the per-OS default
	ServerName string // Defaults to DefaultServerName
	BinaryPath string // Path to the mcp-server binary
	DataDir    string
	RulesDir   string
	TreesDir   string
}

// ClientConfigPath returns the desktop client's config file for this OS.
func ClientConfigPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support", "Claude")
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			configDir = filepath.Join(xdg, "Claude")
			break
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config", "Claude")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		configDir = filepath.Join(appData, "Claude")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	return filepath.Join(configDir, "claude_desktop_config.json"), nil
}

// LoadClientConfig reads configPath. A missing file yields an empty config.
func LoadClientConfig(configPath string) (*ClientConfig, error) {
	config := &ClientConfig{
		MCPServers: make(map[string]MCPServerConfig),
		other:      make(map[string]json.RawMessage),
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, &config.other); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if raw, ok := config.other["mcpServers"]; ok {
		if err := json.Unmarshal(raw, &config.MCPServers); err != nil {
			return nil, fmt.Errorf("failed to parse mcpServers: %w", err)
		}
		if config.MCPServers == nil {
			config.MCPServers = make(map[string]MCPServerConfig)
		}
		delete(config.other, "mcpServers")
	}
	return config, nil
}

// SaveClientConfig writes config to configPath, creating its directory.
func SaveClientConfig(configPath string, config *ClientConfig) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	doc := make(map[string]any, len(config.other)+1)
	for k, v := range config.other {
		doc[k] = v
	}
	doc["mcpServers"] = config.MCPServers

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Register adds or replaces the RealDiag entry in the client config and
// returns the path written and the entry.
func Register(opts Options) (string, MCPServerConfig, error) {
	configPath, err := resolveConfigPath(opts.ConfigPath)
	if err != nil {
		return "", MCPServerConfig{}, err
	}
	if opts.BinaryPath == "" {
		return "", MCPServerConfig{}, fmt.Errorf("server binary path is required")
	}
	binaryPath, err := filepath.Abs(opts.BinaryPath)
	if err != nil {
		return "", MCPServerConfig{}, fmt.Errorf("failed to resolve binary path: %w", err)
	}

	config, err := LoadClientConfig(configPath)
	if err != nil {
		return "", MCPServerConfig{}, err
	}

	entry := MCPServerConfig{Command: binaryPath}
	env := map[string]string{
		"REALDIAG_DATA_DIR":  opts.DataDir,
		"REALDIAG_RULES_DIR": opts.RulesDir,
		"REALDIAG_TREES_DIR": opts.TreesDir,
	}
	for k, v := range env {
		if v == "" {
			continue
		}
		if entry.Env == nil {
			entry.Env = make(map[string]string)
		}
		entry.Env[k] = v
	}

	config.MCPServers[serverName(opts.ServerName)] = entry
	if err := SaveClientConfig(configPath, config); err != nil {
		return "", MCPServerConfig{}, err
	}
	return configPath, entry, nil
}

// Status describes how the RealDiag server is registered.
type Status struct {
	ConfigPath string           `json:"config_path"`
	Registered bool             `json:"registered"`
	Server     *MCPServerConfig `json:"server,omitempty"`
	Issues     []string         `json:"issues"`
}

// GetStatus inspects the client config for the named server entry and
// reports problems with the registered binary and directories.
func GetStatus(configPath, name string) (*Status, error) {
	configPath, err := resolveConfigPath(configPath)
	if err != nil {
		return nil, err
	}
	config, err := LoadClientConfig(configPath)
	if err != nil {
		return nil, err
	}

	status := &Status{ConfigPath: configPath, Issues: []string{}}
	entry, ok := config.MCPServers[serverName(name)]
	if !ok {
		status.Issues = append(status.Issues, fmt.Sprintf("server '%s' is not registered", serverName(name)))
		return status, nil
	}
	status.Registered = true
	status.Server = &entry

	if info, err := os.Stat(entry.Command); err != nil {
		status.Issues = append(status.Issues, fmt.Sprintf("server binary not found: %s", entry.Command))
	} else if runtime.GOOS != "windows" && info.Mode()&0111 == 0 {
		status.Issues = append(status.Issues, fmt.Sprintf("server binary is not executable: %s", entry.Command))
	}
	for _, key := range []string{"REALDIAG_RULES_DIR", "REALDIAG_TREES_DIR"} {
		dir := entry.Env[key]
		if dir == "" {
			continue
		}
		if _, err := os.Stat(dir); err != nil {
			status.Issues = append(status.Issues, fmt.Sprintf("%s does not exist: %s", key, dir))
		}
	}
	return status, nil
}

func resolveConfigPath(configPath string) (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return ClientConfigPath()
}

func serverName(name string) string {
	if name == "" {
		return DefaultServerName
	}
	return name
}
