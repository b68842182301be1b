package codec

import (
	"fmt"
	"net"

	"github.com/riftwire/pgclient/pkg/types"
)

// inet family bytes used by the binary inet/cidr wire format.
const (
	pgAfInet  = 2
	pgAfInet6 = 3
)

// PackInet/UnpackInet handle oid.T_inet/T_cidr. Text format is just the
// CIDR string; binary format carries family/bits/is_cidr/netmask-len/addr.
func PackInet(format types.FormatCode, value net.IPNet, isCIDR bool) ([]byte, error) {
	if format != types.BinaryFormat {
		return []byte(value.String()), nil
	}

	ip4 := value.IP.To4()
	family := byte(pgAfInet)
	addr := ip4
	if ip4 == nil {
		family = pgAfInet6
		addr = value.IP.To16()
		if addr == nil {
			return nil, fmt.Errorf("inet: invalid IP %v", value.IP)
		}
	}

	ones, _ := value.Mask.Size()

	cidrFlag := byte(0)
	if isCIDR {
		cidrFlag = 1
	}

	out := make([]byte, 4+len(addr))
	out[0] = family
	out[1] = byte(ones)
	out[2] = cidrFlag
	out[3] = byte(len(addr))
	copy(out[4:], addr)
	return out, nil
}

func UnpackInet(format types.FormatCode, data []byte) (net.IPNet, error) {
	if format != types.BinaryFormat {
		_, ipnet, err := net.ParseCIDR(string(data))
		if err != nil {
			ip := net.ParseIP(string(data))
			if ip == nil {
				return net.IPNet{}, fmt.Errorf("inet: invalid address %q", data)
			}
			bits := 32
			if ip.To4() == nil {
				bits = 128
			}
			return net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}, nil
		}
		return *ipnet, nil
	}

	if len(data) < 4 {
		return net.IPNet{}, fmt.Errorf("inet: short buffer: %d bytes", len(data))
	}

	bits := int(data[1])
	addrLen := int(data[3])
	if len(data) != 4+addrLen {
		return net.IPNet{}, fmt.Errorf("inet: length mismatch")
	}

	ip := net.IP(data[4:])
	return net.IPNet{IP: ip, Mask: net.CIDRMask(bits, addrLen*8)}, nil
}
