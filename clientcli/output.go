package clientcli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/sagarc03/hubstore"
)

// Formatter formats results for output.
type Formatter interface {
	FormatUpload(w io.Writer, results []UploadResult) error
	FormatRead(w io.Writer, result *ReadResult) error
	FormatList(w io.Writer, result *ListResult) error
	FormatHubInfo(w io.Writer, info *hubstore.HubInfo) error
	FormatKey(w io.Writer, key *KeyInfo) error
	FormatError(w io.Writer, err error) error
	FormatProfileList(w io.Writer, profiles []Profile, defaultName string, showSecrets bool) error
	FormatProfileShow(w io.Writer, profile Profile, isDefault, showSecrets bool) error
}

// NewFormatter returns the appropriate formatter based on flags.
func NewFormatter(jsonOutput, quiet bool) Formatter {
	if jsonOutput {
		return &JSONFormatter{}
	}
	return &HumanFormatter{Quiet: quiet}
}

// HumanFormatter outputs human-readable text.
type HumanFormatter struct {
	Quiet bool
}

// FormatUpload formats upload results as human-readable text.
func (f *HumanFormatter) FormatUpload(w io.Writer, results []UploadResult) error {
	for i := range results {
		r := &results[i]
		if r.Err != nil {
			_, _ = fmt.Fprintf(w, "Error: %s - %v\n", r.LocalPath, r.Err)
			continue
		}
		if !f.Quiet {
			_, _ = fmt.Fprintf(w, "Uploaded: %s (%s)\n", r.RemotePath, formatSize(r.Size))
			_, _ = fmt.Fprintf(w, "  URL: %s\n", r.PublicURL)
		}
	}
	return nil
}

// FormatRead formats a read result as human-readable text.
func (f *HumanFormatter) FormatRead(w io.Writer, result *ReadResult) error {
	if f.Quiet {
		return nil
	}
	if result.LocalPath == "-" {
		_, _ = fmt.Fprintf(w, "Read: %s (%s)\n", result.RemotePath, formatSize(result.Size))
	} else {
		_, _ = fmt.Fprintf(w, "Read: %s -> %s (%s)\n", result.RemotePath, result.LocalPath, formatSize(result.Size))
	}
	if result.ETag != "" {
		_, _ = fmt.Fprintf(w, "  ETag: %s\n", result.ETag)
	}
	return nil
}

// FormatList prints one path per line, then a summary unless Quiet.
func (f *HumanFormatter) FormatList(w io.Writer, result *ListResult) error {
	if len(result.Entries) == 0 {
		if !f.Quiet {
			_, _ = fmt.Fprintln(w, "No objects found")
		}
		return nil
	}

	for _, e := range result.Entries {
		_, _ = fmt.Fprintln(w, e)
	}

	if f.Quiet {
		return nil
	}

	_, _ = fmt.Fprintf(w, "\n%d object(s)\n", len(result.Entries))
	if result.NextPage != "" {
		_, _ = fmt.Fprintf(w, "Next page: use --page %q\n", result.NextPage)
	}
	return nil
}

// FormatHubInfo formats the hub discovery document as human-readable text.
func (f *HumanFormatter) FormatHubInfo(w io.Writer, info *hubstore.HubInfo) error {
	_, _ = fmt.Fprintf(w, "Challenge:       %s\n", info.ChallengeText)
	_, _ = fmt.Fprintf(w, "Auth version:    %s\n", info.LatestAuthVersion)
	_, _ = fmt.Fprintf(w, "Read URL prefix: %s\n", info.ReadURLPrefix)
	return nil
}

// FormatKey formats key information as human-readable text.
func (f *HumanFormatter) FormatKey(w io.Writer, key *KeyInfo) error {
	_, _ = fmt.Fprintf(w, "Algorithm:   %s\n", key.Algorithm)
	_, _ = fmt.Fprintf(w, "Address:     %s\n", key.Address)
	_, _ = fmt.Fprintf(w, "Public key:  %s\n", truncate(key.PublicKey, 72))
	if key.PrivateKey != "" {
		_, _ = fmt.Fprintf(w, "Private key: %s\n", key.PrivateKey)
	}
	return nil
}

// FormatError formats an error as human-readable text.
func (f *HumanFormatter) FormatError(w io.Writer, err error) error {
	_, _ = fmt.Fprintf(w, "Error: %v\n", err)
	return nil
}

// FormatProfileList formats a list of profiles as human-readable text.
func (f *HumanFormatter) FormatProfileList(w io.Writer, profiles []Profile, defaultName string, showSecrets bool) error {
	maxNameLen := 4     // "NAME"
	maxEndpointLen := 8 // "ENDPOINT"
	for i := range profiles {
		maxNameLen = max(maxNameLen, len(profiles[i].Name))
		maxEndpointLen = max(maxEndpointLen, len(profiles[i].Endpoint))
	}
	maxNameLen = min(maxNameLen, 20)
	maxEndpointLen = min(maxEndpointLen, 50)

	_, _ = fmt.Fprintf(w, "  %-*s  %-*s  %-34s  %s\n", maxNameLen, "NAME", maxEndpointLen, "ENDPOINT", "ADDRESS", "PRIVATE KEY")
	_, _ = fmt.Fprintf(w, "  %s  %s  %s  %s\n", strings.Repeat("-", maxNameLen), strings.Repeat("-", maxEndpointLen), strings.Repeat("-", 34), strings.Repeat("-", 20))

	for i := range profiles {
		p := &profiles[i]
		marker := " "
		if p.Name == defaultName {
			marker = "*"
		}

		_, _ = fmt.Fprintf(w, "%s %-*s  %-*s  %-34s  %s\n",
			marker,
			maxNameLen, truncate(p.Name, maxNameLen),
			maxEndpointLen, truncate(p.Endpoint, maxEndpointLen),
			profileAddress(p),
			maskSecret(p.PrivateKey, showSecrets),
		)
	}

	return nil
}

// FormatProfileShow formats a single profile as human-readable text.
func (f *HumanFormatter) FormatProfileShow(w io.Writer, profile Profile, isDefault, showSecrets bool) error {
	_, _ = fmt.Fprintf(w, "Name:        %s", profile.Name)
	if isDefault {
		_, _ = fmt.Fprintf(w, " (default)")
	}
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "Endpoint:    %s\n", profile.Endpoint)
	_, _ = fmt.Fprintf(w, "Address:     %s\n", profileAddress(&profile))
	_, _ = fmt.Fprintf(w, "Private key: %s\n", maskSecret(profile.PrivateKey, showSecrets))
	return nil
}

// JSONFormatter outputs JSON.
type JSONFormatter struct{}

// FormatUpload formats upload results as JSON.
func (f *JSONFormatter) FormatUpload(w io.Writer, results []UploadResult) error {
	type jsonResult struct {
		LocalPath   string `json:"local_path"`
		RemotePath  string `json:"remote_path"`
		PublicURL   string `json:"public_url,omitempty"`
		ContentType string `json:"content_type,omitempty"`
		Size        int64  `json:"size_bytes,omitempty"`
		Error       string `json:"error,omitempty"`
	}

	output := make([]jsonResult, len(results))
	for i := range results {
		r := &results[i]
		jr := jsonResult{
			LocalPath:  r.LocalPath,
			RemotePath: r.RemotePath,
		}
		if r.Err != nil {
			jr.Error = r.Err.Error()
		} else {
			jr.PublicURL = r.PublicURL
			jr.ContentType = r.ContentType
			jr.Size = r.Size
		}
		output[i] = jr
	}

	return writeJSON(w, output)
}

// FormatRead formats a read result as JSON.
func (f *JSONFormatter) FormatRead(w io.Writer, result *ReadResult) error {
	return writeJSON(w, result)
}

// FormatList formats list results as JSON.
func (f *JSONFormatter) FormatList(w io.Writer, result *ListResult) error {
	return writeJSON(w, result)
}

// FormatHubInfo formats the hub discovery document as JSON.
func (f *JSONFormatter) FormatHubInfo(w io.Writer, info *hubstore.HubInfo) error {
	return writeJSON(w, info)
}

// FormatKey formats key information as JSON.
func (f *JSONFormatter) FormatKey(w io.Writer, key *KeyInfo) error {
	return writeJSON(w, key)
}

// FormatError formats an error as JSON.
func (f *JSONFormatter) FormatError(w io.Writer, err error) error {
	output := struct {
		Error string `json:"error"`
	}{
		Error: err.Error(),
	}
	return writeJSON(w, output)
}

type jsonProfile struct {
	Name       string `json:"name"`
	Endpoint   string `json:"endpoint"`
	Address    string `json:"address,omitempty"`
	PrivateKey string `json:"private_key"`
	Default    bool   `json:"default"`
}

func newJSONProfile(p *Profile, isDefault, showSecrets bool) jsonProfile {
	return jsonProfile{
		Name:       p.Name,
		Endpoint:   p.Endpoint,
		Address:    profileAddress(p),
		PrivateKey: maskSecret(p.PrivateKey, showSecrets),
		Default:    isDefault,
	}
}

// FormatProfileList formats a list of profiles as JSON.
func (f *JSONFormatter) FormatProfileList(w io.Writer, profiles []Profile, defaultName string, showSecrets bool) error {
	output := struct {
		Profiles []jsonProfile `json:"profiles"`
	}{
		Profiles: make([]jsonProfile, len(profiles)),
	}

	for i := range profiles {
		output.Profiles[i] = newJSONProfile(&profiles[i], profiles[i].Name == defaultName, showSecrets)
	}

	return writeJSON(w, output)
}

// FormatProfileShow formats a single profile as JSON.
func (f *JSONFormatter) FormatProfileShow(w io.Writer, profile Profile, isDefault, showSecrets bool) error {
	return writeJSON(w, newJSONProfile(&profile, isDefault, showSecrets))
}

// writeJSON writes a value as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// profileAddress derives the namespace address from the profile's key.
func profileAddress(p *Profile) string {
	if p.PrivateKey == "" {
		return "(no key)"
	}
	key, err := DescribeKey(p.PrivateKey)
	if err != nil {
		return "(invalid key)"
	}
	return key.Address
}

func truncate(s string, n int) string {
	if len(s) <= n || n < 4 {
		return s
	}
	return s[:n-3] + "..."
}

// formatSize formats bytes as human-readable size.
func formatSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
		TB = GB * 1024
	)

	switch {
	case bytes < 0:
		return "unknown size"
	case bytes >= TB:
		return fmt.Sprintf("%.1f TB", float64(bytes)/TB)
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// maskSecret shows only the first and last 4 characters of a secret unless showSecrets is set.
func maskSecret(secret string, showSecrets bool) string {
	if showSecrets {
		return secret
	}
	if secret == "" {
		return "(not set)"
	}
	if len(secret) <= 8 {
		return "********"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}
