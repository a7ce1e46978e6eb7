// Package fleet maps classroom device indices to network addresses and
// folder names. Everything here is a pure function of the Fleet value and
// is safe for concurrent use.
package fleet

import (
	"encoding/binary"
	"fmt"
	"math"
	"net"
	"path/filepath"
	"strings"
)

// All selects the common share-all folder in ShareDir instead of a
// per-device one.
const All = -1

// Fleet describes a contiguous range of client computers starting at FirstIP.
type Fleet struct {
	FirstIP net.IP
	Size    int
	User    string
	Port    int
	Prefix  string

	// Exchange is the remote directory on every device.
	Exchange string
	// Share, Fetch and ShareAll are local base directories.
	Share    string
	Fetch    string
	ShareAll string
}

// Validate checks that the fleet is non-empty and that every device address
// fits in the IPv4 space.
func (f Fleet) Validate() error {
	if f.Size < 1 {
		return fmt.Errorf("fleet must contain at least one device, got %d", f.Size)
	}
	ip4 := f.FirstIP.To4()
	if ip4 == nil {
		return fmt.Errorf("first address %q is not IPv4", f.FirstIP)
	}
	start := uint64(binary.BigEndian.Uint32(ip4))
	if start+uint64(f.Size-1) > math.MaxUint32 {
		return fmt.Errorf("fleet of %d devices starting at %s overflows the IPv4 range", f.Size, f.FirstIP)
	}
	return nil
}

// Devices returns every device index in ascending order.
func (f Fleet) Devices() []int {
	if f.Size < 1 {
		return nil
	}
	out := make([]int, f.Size)
	for i := range out {
		out[i] = i
	}
	return out
}

// Address returns FirstIP + index. It returns nil when FirstIP is not IPv4,
// index is negative, or the sum leaves the IPv4 space.
func (f Fleet) Address(index int) net.IP {
	ip4 := f.FirstIP.To4()
	if ip4 == nil || index < 0 {
		return nil
	}
	sum := uint64(binary.BigEndian.Uint32(ip4)) + uint64(index)
	if sum > math.MaxUint32 {
		return nil
	}
	addr := make(net.IP, 4)
	binary.BigEndian.PutUint32(addr, uint32(sum))
	return addr
}

// ShortName returns the device label, e.g. "S03" for index 2. Labels grow
// past two digits instead of truncating.
func (f Fleet) ShortName(index int) string {
	return fmt.Sprintf("%s%02d", f.Prefix, index+1)
}

// Names maps indices to short names.
func (f Fleet) Names(indices []int) []string {
	names := make([]string, len(indices))
	for i, d := range indices {
		names[i] = f.ShortName(d)
	}
	return names
}

// FetchDir is the local folder collected files for a device land in.
func (f Fleet) FetchDir(index int) string {
	return filepath.Join(f.Fetch, f.ShortName(index))
}

// ShareDir is the local folder handed to a device. Passing All returns the
// common share-all folder.
func (f Fleet) ShareDir(index int) string {
	if index == All {
		return f.ShareAll
	}
	return filepath.Join(f.Share, f.ShortName(index))
}

// ShareAllDir ignores the device and returns the common share-all folder.
// It has the shape of a transfer path function.
func (f Fleet) ShareAllDir(int) string {
	return f.ShareAll
}

// ExchangeSpec is the device's remote exchange folder in scp notation.
func (f Fleet) ExchangeSpec(index int) string {
	host := "invalid"
	if ip := f.Address(index); ip != nil {
		host = ip.String()
	}
	spec := host + ":" + f.Exchange
	if f.User != "" {
		spec = f.User + "@" + spec
	}
	return spec
}

// DescribeDevices joins device names for messages ("S01, S04").
func (f Fleet) DescribeDevices(indices []int) string {
	return strings.Join(f.Names(indices), ", ")
}
