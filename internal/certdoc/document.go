// Package certdoc renders erase certificates as documents, parses them back,
// and archives them to the configured vaults.
package certdoc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"wipe-go/internal/wipe"
)

// Format is a certificate document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	// FormatText is a human-readable summary. It cannot be parsed back.
	FormatText Format = "text"
)

// ParseFormat maps a case-insensitive name to a Format. An empty name
// selects JSON.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatJSON, nil
	case FormatJSON, FormatYAML, FormatTOML, FormatText:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown certificate format: %q", s)
	}
}

// Render encodes cert in the given format. Every field of the certificate
// is rendered, including the seal.
func Render(cert wipe.Certificate, format Format) ([]byte, error) {
	switch format {
	case FormatJSON, "":
		data, err := json.MarshalIndent(cert, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("rendering json: %w", err)
		}
		return append(data, '\n'), nil
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(cert); err != nil {
			return nil, fmt.Errorf("rendering yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("rendering yaml: %w", err)
		}
		return buf.Bytes(), nil
	case FormatTOML:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(cert); err != nil {
			return nil, fmt.Errorf("rendering toml: %w", err)
		}
		return buf.Bytes(), nil
	case FormatText:
		return renderText(cert), nil
	default:
		return nil, fmt.Errorf("unknown certificate format: %q", format)
	}
}

func renderText(cert wipe.Certificate) []byte {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "Certificate of Data Erasure")
	fmt.Fprintln(&buf)

	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	row := func(k, v string) { fmt.Fprintf(tw, "%s:\t%s\n", k, v) }
	row("Certificate ID", cert.ID)
	if cert.StationID != "" {
		row("Station", cert.StationID)
	}
	row("Drive", cert.Drive.Summary())
	if cert.Drive.Model != "" {
		row("Model", cert.Drive.Model)
	}
	if cert.Drive.Serial != "" {
		row("Serial", cert.Drive.Serial)
	}
	row("Method", fmt.Sprintf("%s (%s)", cert.Plan.Method, cert.Plan.Method.Description()))
	row("Passes", fmt.Sprintf("%d", cert.Plan.PassCount))
	patterns := make([]string, len(cert.Plan.Patterns))
	for i, p := range cert.Plan.Patterns {
		patterns[i] = string(p)
	}
	row("Patterns", strings.Join(patterns, ", "))
	row("Started", cert.StartedAt.Format(time.RFC3339))
	row("Completed", cert.CompletedAt.Format(time.RFC3339))
	row("Status", "Verified")
	row("Seal", cert.Seal)
	tw.Flush()
	return buf.Bytes()
}

// Detect guesses the format of a certificate document.
func Detect(data []byte) Format {
	trimmed := bytes.TrimSpace(data)
	switch {
	case bytes.HasPrefix(trimmed, []byte("{")):
		return FormatJSON
	case bytes.HasPrefix(trimmed, []byte("certificate_id =")), bytes.Contains(trimmed, []byte("\n[drive]")):
		return FormatTOML
	default:
		return FormatYAML
	}
}

// Parse decodes a certificate document. An empty format is detected from
// the data.
func Parse(data []byte, format Format) (wipe.Certificate, error) {
	if format == "" {
		format = Detect(data)
	}

	var cert wipe.Certificate
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cert); err != nil {
			return wipe.Certificate{}, fmt.Errorf("parsing json certificate: %w", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cert); err != nil {
			return wipe.Certificate{}, fmt.Errorf("parsing yaml certificate: %w", err)
		}
	case FormatTOML:
		md, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&cert)
		if err != nil {
			return wipe.Certificate{}, fmt.Errorf("parsing toml certificate: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return wipe.Certificate{}, fmt.Errorf("parsing toml certificate: unknown keys %v", undecoded)
		}
	default:
		return wipe.Certificate{}, fmt.Errorf("cannot parse %s certificate documents", format)
	}

	if cert.ID == "" {
		return wipe.Certificate{}, fmt.Errorf("document has no certificate_id")
	}
	return cert, nil
}
