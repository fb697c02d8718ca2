// Package directory resolves a patient reference to the endpoint serving
// that patient's clinical-data bundle. The backing store is a CSV file with
// MPIID, Name, and Endpoint columns, loaded once at startup.
package directory

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrPatientNotFound is returned when the reference is not in the directory.
var ErrPatientNotFound = errors.New("directory: patient not found")

// Patient is one directory entry.
type Patient struct {
	MPIID    string
	Name     string
	Endpoint string
}

// Directory is an immutable patient→endpoint lookup table.
type Directory struct {
	byID map[string]Patient
}

// LoadCSV reads a patient directory file. The first row must be a header
// containing MPIID, Name, and Endpoint columns, in any order.
func LoadCSV(path string) (*Directory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("directory: open %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads directory entries from r in CSV form.
func Parse(r io.Reader) (*Directory, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("directory: read header: %w", err)
	}

	cols := map[string]int{}
	for i, name := range header {
		cols[name] = i
	}
	for _, required := range []string{"MPIID", "Name", "Endpoint"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("directory: missing column %q", required)
		}
	}

	byID := make(map[string]Patient)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("directory: read row: %w", err)
		}
		p := Patient{
			MPIID:    row[cols["MPIID"]],
			Name:     row[cols["Name"]],
			Endpoint: row[cols["Endpoint"]],
		}
		byID[p.MPIID] = p
	}
	return &Directory{byID: byID}, nil
}

// Lookup returns the entry for a patient reference.
func (d *Directory) Lookup(mpiid string) (Patient, error) {
	p, ok := d.byID[mpiid]
	if !ok {
		return Patient{}, fmt.Errorf("%w: %s", ErrPatientNotFound, mpiid)
	}
	return p, nil
}

// Len reports the number of entries.
func (d *Directory) Len() int { return len(d.byID) }
