package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rolodexhq/rolodex/internal/config"
	"github.com/rolodexhq/rolodex/internal/importer"
	"github.com/rolodexhq/rolodex/internal/logger"
	"github.com/rolodexhq/rolodex/internal/version"
)

type cliOptions struct {
	configPath  string
	username    string
	password    string
	jwtToken    string
	apiBaseURL  string
	sourceLabel string
	timeout     time.Duration
	showVersion bool
}

const usageText = `Usage: rolodex [flags] <command> [args]

Commands:
  search <terms>                      search contacts
  show <contact-id>                   show a contact bundle
  dedupe run                          run duplicate detection
  dedupe list [status]                list duplicate suggestions
  dedupe resolve <id> <accepted|rejected>
  dedupe merge <survivor-id> <merged-id>
  import <file.csv|file.vcf>          import a contact file (uses guessed mapping for CSV)
  batches                             list import batches
`

func main() {
	opts := parseFlags()
	if opts.showVersion {
		fmt.Printf("Rolodex CLI %s\n", version.GetInfo())
		return
	}
	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(2)
	}
	ctx := context.Background()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)

	if strings.TrimSpace(opts.apiBaseURL) == "" {
		opts.apiBaseURL = defaultAPIBaseURL(cfg.Server.Addr)
	}
	if strings.TrimSpace(opts.apiBaseURL) == "" {
		logger.Error("api url is required")
		os.Exit(1)
	}
	opts.apiBaseURL = normalizeBaseURL(opts.apiBaseURL)

	client := &http.Client{Timeout: opts.timeout}
	jwtToken := strings.TrimSpace(opts.jwtToken)
	if jwtToken == "" {
		username, password, err := resolveLoginCredentials(opts, cfg)
		if err != nil {
			logger.Error("resolve login", slog.Any("error", err))
			os.Exit(1)
		}
		jwtToken, err = loginForToken(ctx, client, opts.apiBaseURL, username, password)
		if err != nil {
			logger.Error("login", slog.Any("error", err))
			os.Exit(1)
		}
	}

	api := &apiClient{client: client, baseURL: opts.apiBaseURL, token: jwtToken}
	if err := runCommand(ctx, api, opts, args); err != nil {
		logger.Error("command failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func runCommand(ctx context.Context, api *apiClient, opts cliOptions, args []string) error {
	switch args[0] {
	case "search":
		if len(args) < 2 {
			return fmt.Errorf("search requires a query")
		}
		query := url.Values{"q": []string{strings.Join(args[1:], " ")}}
		return api.getJSON(ctx, "/contacts?"+query.Encode())

	case "show":
		if len(args) != 2 {
			return fmt.Errorf("show requires a contact id")
		}
		return api.getJSON(ctx, "/contacts/"+url.PathEscape(args[1])+"/bundle")

	case "dedupe":
		if len(args) < 2 {
			return fmt.Errorf("dedupe requires a subcommand: run, list, resolve, merge")
		}
		switch args[1] {
		case "run":
			return api.postJSON(ctx, "/dedupe/run", map[string]any{})
		case "list":
			path := "/dedupe/suggestions"
			if len(args) > 2 {
				path += "?status=" + url.QueryEscape(args[2])
			}
			return api.getJSON(ctx, path)
		case "resolve":
			if len(args) != 4 {
				return fmt.Errorf("dedupe resolve requires <id> <accepted|rejected>")
			}
			return api.postJSON(ctx, "/dedupe/suggestions/"+url.PathEscape(args[2])+"/resolve",
				map[string]any{"resolution": args[3]})
		case "merge":
			if len(args) != 4 {
				return fmt.Errorf("dedupe merge requires <survivor-id> <merged-id>")
			}
			return api.postJSON(ctx, "/dedupe/merge", map[string]any{
				"survivor_contact_id": args[2],
				"merged_contact_id":   args[3],
			})
		default:
			return fmt.Errorf("unknown dedupe subcommand: %s", args[1])
		}

	case "import":
		if len(args) != 2 {
			return fmt.Errorf("import requires a file path")
		}
		return runImport(ctx, api, opts, args[1])

	case "batches":
		return api.getJSON(ctx, "/imports/batches")

	default:
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

// runImport uploads a CSV or vCard file. For CSV it previews first and commits
// with the guessed column mapping.
func runImport(ctx context.Context, api *apiClient, opts cliOptions, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	fileName := filepath.Base(path)
	label := strings.TrimSpace(opts.sourceLabel)
	if label == "" {
		label = fileName
	}
	encoded := base64.StdEncoding.EncodeToString(raw)

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".vcf" || ext == ".vcard" {
		return api.postJSON(ctx, "/imports/vcard/commit", map[string]any{
			"file_name":    fileName,
			"vcard_base64": encoded,
			"source_type":  "vcard",
			"source_label": label,
		})
	}

	preview, err := api.request(ctx, http.MethodPost, "/imports/csv/preview", map[string]any{
		"file_name":  fileName,
		"csv_base64": encoded,
	})
	if err != nil {
		return err
	}
	var parsed importer.CSVPreview
	if err := json.Unmarshal(preview, &parsed); err != nil {
		return fmt.Errorf("parse preview: %w", err)
	}
	fmt.Printf("Previewed %s: %d columns, guessed mapping for %d\n",
		fileName, len(parsed.Headers), mappedCount(parsed.MappingSuggestion))

	return api.postJSON(ctx, "/imports/csv/commit", map[string]any{
		"file_name":    fileName,
		"csv_base64":   encoded,
		"source_type":  "csv",
		"source_label": label,
		"mapping":      parsed.MappingSuggestion,
	})
}

func mappedCount(mapping map[string]string) int {
	count := 0
	for _, field := range mapping {
		if field != "" {
			count++
		}
	}
	return count
}

type apiClient struct {
	client  *http.Client
	baseURL string
	token   string
}

func (a *apiClient) getJSON(ctx context.Context, path string) error {
	payload, err := a.request(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return printJSON(payload)
}

func (a *apiClient) postJSON(ctx context.Context, path string, body any) error {
	payload, err := a.request(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	return printJSON(payload)
}

func (a *apiClient) request(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+a.token)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("api server error: %s", strings.TrimSpace(string(payload)))
	}
	return payload, nil
}

func printJSON(payload []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, payload, "", "  "); err != nil {
		fmt.Println(strings.TrimSpace(string(payload)))
		return nil
	}
	fmt.Println(buf.String())
	return nil
}

func parseFlags() cliOptions {
	var opts cliOptions
	defaultConfig := os.Getenv("CONFIG_PATH")
	if strings.TrimSpace(defaultConfig) == "" {
		defaultConfig = config.DefaultConfigPath
	}

	flag.StringVar(&opts.configPath, "config", defaultConfig, "Path to config.toml")
	flag.StringVar(&opts.username, "username", "", "Username for login")
	flag.StringVar(&opts.password, "password", "", "Password for login (or set ROLODEX_PASSWORD)")
	flag.StringVar(&opts.jwtToken, "jwt", "", "JWT token (optional)")
	flag.StringVar(&opts.apiBaseURL, "api-url", "", "API server base URL (e.g. http://127.0.0.1:8080)")
	flag.StringVar(&opts.sourceLabel, "label", "", "Source label for imports (defaults to the file name)")
	flag.DurationVar(&opts.timeout, "timeout", 30*time.Second, "Request timeout")
	flag.BoolVar(&opts.showVersion, "version", false, "Show version information")
	flag.Parse()

	return opts
}

func normalizeBaseURL(value string) string {
	return strings.TrimRight(strings.TrimSpace(value), "/")
}

func defaultAPIBaseURL(addr string) string {
	trimmed := strings.TrimSpace(addr)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		return normalizeBaseURL(trimmed)
	}
	if strings.HasPrefix(trimmed, ":") {
		return "http://127.0.0.1" + trimmed
	}
	return "http://" + trimmed
}

func resolveLoginCredentials(opts cliOptions, cfg config.Config) (string, string, error) {
	username := strings.TrimSpace(opts.username)
	if username == "" {
		username = strings.TrimSpace(cfg.Admin.Username)
	}
	if username == "" {
		return "", "", fmt.Errorf("username is required for login")
	}

	password := strings.TrimSpace(opts.password)
	if password == "" {
		password = strings.TrimSpace(os.Getenv("ROLODEX_PASSWORD"))
	}
	if password == "" {
		if candidate := strings.TrimSpace(cfg.Admin.Password); candidate != "" && candidate != "change-your-password-here" {
			password = candidate
		}
	}
	if password == "" {
		return "", "", fmt.Errorf("password is required; pass --password or set ROLODEX_PASSWORD")
	}
	return username, password, nil
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
}

func loginForToken(ctx context.Context, client *http.Client, baseURL, username, password string) (string, error) {
	body, err := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		normalizeBaseURL(baseURL)+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("login failed: %s", strings.TrimSpace(string(payload)))
	}

	var parsed loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if strings.TrimSpace(parsed.AccessToken) == "" {
		return "", fmt.Errorf("login succeeded but token missing")
	}
	return parsed.AccessToken, nil
}
