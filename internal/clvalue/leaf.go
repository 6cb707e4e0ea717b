package clvalue

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/blake2b"
)

// AccessRights is the permission byte carried by a URef.
type AccessRights uint8

const (
	AccessNone         AccessRights = 0
	AccessRead         AccessRights = 1
	AccessWrite        AccessRights = 2
	AccessAdd          AccessRights = 4
	AccessReadAddWrite AccessRights = AccessRead | AccessWrite | AccessAdd
)

// URef is an unforgeable reference to a value in global state.
type URef struct {
	Addr   common.Hash
	Access AccessRights
}

// String formats the reference as "uref-<hex>-<octal rights>".
func (u URef) String() string {
	return fmt.Sprintf("uref-%s-%03o", hex.EncodeToString(u.Addr[:]), uint8(u.Access))
}

// Bytes returns the canonical 33-byte encoding.
func (u URef) Bytes() []byte {
	out := make([]byte, 0, 33)
	out = append(out, u.Addr[:]...)
	return append(out, byte(u.Access))
}

// MarshalText implements encoding.TextMarshaler.
func (u URef) MarshalText() ([]byte, error) { return []byte(u.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (u *URef) UnmarshalText(text []byte) error {
	parsed, err := ParseURef(string(text))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// ParseURef parses the "uref-<hex>-<octal rights>" form.
func ParseURef(s string) (URef, error) {
	body, ok := strings.CutPrefix(s, "uref-")
	if !ok {
		return URef{}, fmt.Errorf("invalid uref %q: missing prefix", s)
	}
	addrHex, rightsText, ok := strings.Cut(body, "-")
	if !ok {
		return URef{}, fmt.Errorf("invalid uref %q: missing access rights", s)
	}
	addr, err := ParseHash(addrHex)
	if err != nil {
		return URef{}, fmt.Errorf("invalid uref %q: %w", s, err)
	}
	rights, err := strconv.ParseUint(rightsText, 8, 8)
	if err != nil || rights > uint64(AccessReadAddWrite) {
		return URef{}, fmt.Errorf("invalid uref %q: bad access rights", s)
	}
	return URef{Addr: addr, Access: AccessRights(rights)}, nil
}

// ParseHash parses a 32-byte hex digest with optional "0x" prefix.
func ParseHash(s string) (common.Hash, error) {
	s = strings.TrimSpace(s)
	raw := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(raw) != 2*common.HashLength {
		return common.Hash{}, fmt.Errorf("invalid hash %q: want %d hex chars", s, 2*common.HashLength)
	}
	if _, err := hex.DecodeString(raw); err != nil {
		return common.Hash{}, fmt.Errorf("invalid hash %q: %w", s, err)
	}
	return common.HexToHash(raw), nil
}

// KeyTag is the variant tag of a global state Key.
type KeyTag uint8

const (
	KeyTagAccount KeyTag = iota
	KeyTagHash
	KeyTagURef
	KeyTagTransfer
	KeyTagDeployInfo
	KeyTagEraInfo
	KeyTagBalance
	KeyTagBid
	KeyTagWithdraw
	KeyTagDictionary
	KeyTagSystemContractRegistry
	KeyTagEraSummary
	KeyTagUnbond
	KeyTagChainspecRegistry
	KeyTagChecksumRegistry
	KeyTagBidAddr
	KeyTagPackage
	KeyTagAddressableEntity
	KeyTagByteCode
	KeyTagMessage
	KeyTagNamedKey
	KeyTagBlockGlobal
	KeyTagBalanceHold
	KeyTagEntryPoint
	KeyTagState
)

var keyPrefixes = [...]string{
	KeyTagAccount:                "account-hash-",
	KeyTagHash:                   "hash-",
	KeyTagURef:                   "uref-",
	KeyTagTransfer:               "transfer-",
	KeyTagDeployInfo:             "deploy-",
	KeyTagEraInfo:                "era-",
	KeyTagBalance:                "balance-",
	KeyTagBid:                    "bid-",
	KeyTagWithdraw:               "withdraw-",
	KeyTagDictionary:             "dictionary-",
	KeyTagSystemContractRegistry: "system-contract-registry-",
	KeyTagEraSummary:             "era-summary-",
	KeyTagUnbond:                 "unbond-",
	KeyTagChainspecRegistry:      "chainspec-registry-",
	KeyTagChecksumRegistry:       "checksum-registry-",
	KeyTagBidAddr:                "bid-addr-",
	KeyTagPackage:                "package-",
	KeyTagAddressableEntity:      "entity-",
	KeyTagByteCode:               "byte-code-",
	KeyTagMessage:                "message-",
	KeyTagNamedKey:               "named-key-",
	KeyTagBlockGlobal:            "block-global-",
	KeyTagBalanceHold:            "balance-hold-",
	KeyTagEntryPoint:             "entry-point-",
	KeyTagState:                  "state-",
}

// taggedPayload reports whether a key variant carries a sub-tagged payload
// of variable width instead of a bare 32-byte hash.
func (t KeyTag) taggedPayload() bool {
	return t >= KeyTagBidAddr && t != KeyTagPackage
}

// Key addresses an entry of global state.
type Key struct {
	Tag  KeyTag
	Hash common.Hash // 32-byte hash variants
	URef URef        // KeyTagURef
	Era  uint64      // KeyTagEraInfo
	Raw  []byte      // canonical payload of the sub-tagged 2.x variants
}

func (k Key) String() string {
	switch k.Tag {
	case KeyTagURef:
		return k.URef.String()
	case KeyTagEraInfo:
		return keyPrefixes[KeyTagEraInfo] + strconv.FormatUint(k.Era, 10)
	default:
		if int(k.Tag) >= len(keyPrefixes) {
			return fmt.Sprintf("key(%d)", k.Tag)
		}
		if k.Tag.taggedPayload() {
			return keyPrefixes[k.Tag] + hex.EncodeToString(k.Raw)
		}
		return keyPrefixes[k.Tag] + hex.EncodeToString(k.Hash[:])
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Key) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// ParseKey parses the formatted key forms produced by Key.String.
func ParseKey(s string) (Key, error) {
	if strings.HasPrefix(s, "uref-") {
		u, err := ParseURef(s)
		if err != nil {
			return Key{}, err
		}
		return Key{Tag: KeyTagURef, URef: u}, nil
	}
	// Longest prefix wins so "era-summary-" is not taken for "era-".
	best := -1
	for tag, prefix := range keyPrefixes {
		if KeyTag(tag) == KeyTagURef || !strings.HasPrefix(s, prefix) {
			continue
		}
		if best < 0 || len(prefix) > len(keyPrefixes[best]) {
			best = tag
		}
	}
	if best < 0 {
		return Key{}, fmt.Errorf("unrecognised key %q", s)
	}
	body := strings.TrimPrefix(s, keyPrefixes[best])
	if KeyTag(best) == KeyTagEraInfo {
		era, err := strconv.ParseUint(body, 10, 64)
		if err != nil {
			return Key{}, fmt.Errorf("invalid era key %q: %w", s, err)
		}
		return Key{Tag: KeyTagEraInfo, Era: era}, nil
	}
	if tag := KeyTag(best); tag.taggedPayload() {
		raw, err := hex.DecodeString(body)
		if err != nil {
			return Key{}, fmt.Errorf("invalid key %q: %w", s, err)
		}
		n, err := keyPayloadLen(tag, raw)
		if err != nil {
			return Key{}, fmt.Errorf("invalid key %q: %w", s, err)
		}
		if n != len(raw) {
			return Key{}, fmt.Errorf("invalid key %q: payload is %d bytes, want %d", s, len(raw), n)
		}
		return Key{Tag: tag, Raw: raw}, nil
	}
	hash, err := ParseHash(body)
	if err != nil {
		return Key{}, fmt.Errorf("invalid key %q: %w", s, err)
	}
	return Key{Tag: KeyTag(best), Hash: hash}, nil
}

func readKey(b []byte) (Key, []byte, error) {
	tag, rest, ok := readU8(b)
	if !ok {
		return Key{}, b, fmt.Errorf("missing key tag")
	}
	switch KeyTag(tag) {
	case KeyTagURef:
		u, r, err := readURef(rest)
		if err != nil {
			return Key{}, b, err
		}
		return Key{Tag: KeyTagURef, URef: u}, r, nil
	case KeyTagEraInfo:
		body, r, ok := take(rest, 8)
		if !ok {
			return Key{}, b, fmt.Errorf("era key: need 8 bytes, have %d", len(rest))
		}
		return Key{Tag: KeyTagEraInfo, Era: binary.LittleEndian.Uint64(body)}, r, nil
	default:
		if int(tag) >= len(keyPrefixes) {
			return Key{}, b, fmt.Errorf("unknown key tag %d", tag)
		}
		if KeyTag(tag).taggedPayload() {
			n, err := keyPayloadLen(KeyTag(tag), rest)
			if err != nil {
				return Key{}, b, err
			}
			body, r, ok := take(rest, n)
			if !ok {
				return Key{}, b, fmt.Errorf("%skey payload: need %d bytes, have %d", keyPrefixes[tag], n, len(rest))
			}
			return Key{Tag: KeyTag(tag), Raw: append(make([]byte, 0, n), body...)}, r, nil
		}
		body, r, ok := take(rest, common.HashLength)
		if !ok {
			return Key{}, b, fmt.Errorf("key payload: need %d bytes, have %d", common.HashLength, len(rest))
		}
		return Key{Tag: KeyTag(tag), Hash: common.BytesToHash(body)}, r, nil
	}
}

// Payload widths of the sub-tagged variants.
const (
	entityAddrLen    = 1 + common.HashLength
	namedKeyAddrLen  = entityAddrLen + common.HashLength
	balanceHoldLen   = 1 + common.HashLength + 8
	bidAddrCreditLen = 1 + common.HashLength + 8
)

// keyPayloadLen returns the width of a sub-tagged key payload at the front of b.
// Only the sub-tags are inspected; the remaining bytes are opaque addresses.
func keyPayloadLen(tag KeyTag, b []byte) (int, error) {
	sub, ok := peekU8(b, 0)
	if !ok {
		return 0, fmt.Errorf("%skey: missing sub-tag", keyPrefixes[tag])
	}
	bad := func() (int, error) {
		return 0, fmt.Errorf("%skey: invalid sub-tag %d", keyPrefixes[tag], sub)
	}
	switch tag {
	case KeyTagBidAddr:
		switch sub {
		case 0, 1: // unified, validator
			return 1 + common.HashLength, nil
		case 2, 3, 5, 6, 7, 8: // delegated, reserved and unbond pairs
			return 1 + 2*common.HashLength, nil
		case 4: // credit: validator and era
			return bidAddrCreditLen, nil
		}
		return bad()
	case KeyTagAddressableEntity, KeyTagState:
		if sub > 2 {
			return bad()
		}
		return entityAddrLen, nil
	case KeyTagByteCode:
		switch sub {
		case 0: // empty
			return 1, nil
		case 1, 2:
			return 1 + common.HashLength, nil
		}
		return bad()
	case KeyTagMessage:
		if sub > 2 {
			return bad()
		}
		// entity address, topic name hash, Option<u32> message index
		opt, ok := peekU8(b, namedKeyAddrLen)
		if !ok {
			return 0, fmt.Errorf("%skey: missing message index tag", keyPrefixes[tag])
		}
		switch opt {
		case OptionNoneTag:
			return namedKeyAddrLen + 1, nil
		case OptionSomeTag:
			return namedKeyAddrLen + 1 + 4, nil
		}
		return 0, fmt.Errorf("%skey: invalid message index tag %d", keyPrefixes[tag], opt)
	case KeyTagNamedKey:
		if sub > 2 {
			return bad()
		}
		return namedKeyAddrLen, nil
	case KeyTagBlockGlobal:
		if sub > 3 {
			return bad()
		}
		return 1, nil
	case KeyTagBalanceHold:
		if sub > 1 {
			return bad()
		}
		return balanceHoldLen, nil
	case KeyTagEntryPoint:
		switch sub {
		case 0: // v1 entry point: entity address and name hash
			return 1 + entityAddrLen + common.HashLength, nil
		case 1: // v2 entry point: entity address and u32 selector
			return 1 + entityAddrLen + 4, nil
		}
		return bad()
	}
	return bad()
}

func peekU8(b []byte, at int) (uint8, bool) {
	if at >= len(b) {
		return 0, false
	}
	return b[at], true
}

func readURef(b []byte) (URef, []byte, error) {
	body, rest, ok := take(b, common.HashLength+1)
	if !ok {
		return URef{}, b, fmt.Errorf("uref: need %d bytes, have %d", common.HashLength+1, len(b))
	}
	rights := AccessRights(body[common.HashLength])
	if rights > AccessReadAddWrite {
		return URef{}, b, fmt.Errorf("uref: invalid access rights %#x", uint8(rights))
	}
	return URef{Addr: common.BytesToHash(body[:common.HashLength]), Access: rights}, rest, nil
}

// PublicKeyTag identifies the signature algorithm of a PublicKey.
type PublicKeyTag uint8

const (
	PublicKeySystem    PublicKeyTag = 0
	PublicKeyEd25519   PublicKeyTag = 1
	PublicKeySecp256k1 PublicKeyTag = 2
)

const (
	ed25519KeyLength   = 32
	secp256k1KeyLength = 33
)

// PublicKey is an account public key.
type PublicKey struct {
	Tag PublicKeyTag
	Raw []byte
}

// String returns the tag-prefixed hex form used by the ledger.
func (p PublicKey) String() string {
	return fmt.Sprintf("%02x%s", uint8(p.Tag), hex.EncodeToString(p.Raw))
}

// MarshalText implements encoding.TextMarshaler.
func (p PublicKey) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// AccountHash derives the account hash: blake2b256(algorithm name || 0x00 || raw key).
func (p PublicKey) AccountHash() common.Hash {
	var name string
	switch p.Tag {
	case PublicKeyEd25519:
		name = "ed25519"
	case PublicKeySecp256k1:
		name = "secp256k1"
	default:
		name = "system"
	}
	preimage := make([]byte, 0, len(name)+1+len(p.Raw))
	preimage = append(preimage, name...)
	preimage = append(preimage, 0)
	preimage = append(preimage, p.Raw...)
	return common.Hash(blake2b.Sum256(preimage))
}

func readPublicKey(b []byte) (PublicKey, []byte, error) {
	tag, rest, ok := readU8(b)
	if !ok {
		return PublicKey{}, b, fmt.Errorf("missing public key tag")
	}
	switch PublicKeyTag(tag) {
	case PublicKeySystem:
		return PublicKey{Tag: PublicKeySystem}, rest, nil
	case PublicKeyEd25519:
		raw, r, ok := take(rest, ed25519KeyLength)
		if !ok {
			return PublicKey{}, b, fmt.Errorf("ed25519 key: need %d bytes, have %d", ed25519KeyLength, len(rest))
		}
		return PublicKey{Tag: PublicKeyEd25519, Raw: append([]byte(nil), raw...)}, r, nil
	case PublicKeySecp256k1:
		raw, r, ok := take(rest, secp256k1KeyLength)
		if !ok {
			return PublicKey{}, b, fmt.Errorf("secp256k1 key: need %d bytes, have %d", secp256k1KeyLength, len(rest))
		}
		if _, err := crypto.DecompressPubkey(raw); err != nil {
			return PublicKey{}, b, fmt.Errorf("secp256k1 key: %w", err)
		}
		return PublicKey{Tag: PublicKeySecp256k1, Raw: append([]byte(nil), raw...)}, r, nil
	default:
		return PublicKey{}, b, fmt.Errorf("unknown public key tag %d", tag)
	}
}

// readBigUint reads a 1-byte length followed by that many little-endian magnitude bytes.
func readBigUint(b []byte, maxBytes int) (*big.Int, []byte, error) {
	n, rest, ok := readU8(b)
	if !ok {
		return nil, b, fmt.Errorf("missing length byte")
	}
	if int(n) > maxBytes {
		return nil, b, fmt.Errorf("length %d exceeds %d bytes", n, maxBytes)
	}
	body, r, ok := take(rest, int(n))
	if !ok {
		return nil, b, fmt.Errorf("need %d bytes, have %d", n, len(rest))
	}
	be := make([]byte, len(body))
	for i, c := range body {
		be[len(body)-1-i] = c
	}
	return new(big.Int).SetBytes(be), r, nil
}
