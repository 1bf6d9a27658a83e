package audio

import (
	"fmt"
	"os/exec"
	"sort"
	"strings"
)

// PipeWire inspects the PipeWire graph through pw-link
type PipeWire struct{}

// NewPipeWire creates a new PipeWire instance
func NewPipeWire() *PipeWire {
	return &PipeWire{}
}

// ListPorts returns all output ports, i.e. everything that can be captured
func (pw *PipeWire) ListPorts() ([]string, error) {
	cmd := exec.Command("pw-link", "-o")
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to list PipeWire ports: %w", err)
	}

	return parsePortList(string(output)), nil
}

func parsePortList(output string) []string {
	var ports []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "Input ports:") && !strings.HasPrefix(line, "Output ports:") {
			ports = append(ports, line)
		}
	}
	return ports
}

// ValidateSource checks that a node or port exists and, for ports, has no duplicates
func (pw *PipeWire) ValidateSource(source string) error {
	ports, err := pw.ListPorts()
	if err != nil {
		return err
	}
	return validateSourceInList(source, ports)
}

func validateSourceInList(source string, ports []string) error {
	if source == "" || source == "disabled" {
		return nil
	}

	duplicates := findPortDuplicatesInList(source, ports)
	if len(duplicates) > 1 {
		return fmt.Errorf("duplicate sources detected for '%s': %v. Please close conflicting applications", source, duplicates)
	}
	if len(duplicates) == 1 {
		return nil
	}

	for _, node := range nodeNames(ports) {
		if node == source {
			return nil
		}
	}

	return fmt.Errorf("source not found: %s", source)
}

// findPortDuplicatesInList finds all ports with exactly the same name
func findPortDuplicatesInList(portName string, allPorts []string) []string {
	var duplicates []string
	for _, port := range allPorts {
		if port == portName {
			duplicates = append(duplicates, port)
		}
	}

	return duplicates
}

// nodeNames returns the sorted, unique node part of "node:port" names
func nodeNames(ports []string) []string {
	seen := make(map[string]bool)
	var nodes []string
	for _, port := range ports {
		node := nodeOf(port)
		if !seen[node] {
			seen[node] = true
			nodes = append(nodes, node)
		}
	}
	sort.Strings(nodes)
	return nodes
}

// nodeOf strips the port suffix; pw-record targets nodes, not ports
func nodeOf(source string) string {
	if i := strings.LastIndex(source, ":"); i > 0 {
		return source[:i]
	}
	return source
}
