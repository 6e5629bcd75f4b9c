package utils

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

var (
	NullEthereumAddressHex = common.Address{}.Hex()
)

func AreAddressesEqual(a, b string) bool {
	return strings.EqualFold(a, b)
}

// IsValidWalletAddress accepts 0x-prefixed 20 byte hex addresses. Mixed case input must carry
// a valid EIP-55 checksum; all lower or all upper case input is accepted as is.
func IsValidWalletAddress(address string) bool {
	if !strings.HasPrefix(address, "0x") || !common.IsHexAddress(address) {
		return false
	}
	if AreAddressesEqual(address, NullEthereumAddressHex) {
		return false
	}
	body := address[2:]
	if body == strings.ToLower(body) || body == strings.ToUpper(body) {
		return true
	}
	return common.HexToAddress(address).Hex() == address
}

// NormalizeWalletAddress returns the EIP-55 checksummed form.
func NormalizeWalletAddress(address string) string {
	return common.HexToAddress(address).Hex()
}

// NewReferralCode returns an 8 character upper case code.
func NewReferralCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
