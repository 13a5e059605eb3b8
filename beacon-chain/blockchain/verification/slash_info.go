package verification

import "github.com/voyager-chain/beaconverify/consensus-types/blocks"

// BlockSlashInfo is emitted alongside a failed gossip or execution-pending
// verification so the slasher can still learn about a slashable equivocation
// from a block that otherwise failed import. Exactly one of the
// three constructors below produces any given value; Kind says which.
type BlockSlashInfo struct {
	Kind   SlashInfoKind
	Header *blocks.SignedBeaconBlockHeader
	Err    *BlockError
}

// SlashInfoKind selects which BlockSlashInfo variant this is.
type SlashInfoKind int

const (
	// SignatureNotChecked: the block failed before its proposer signature was
	// checked at all. The slasher integration must perform a standalone
	// signature-only recheck before using Header.
	SignatureNotChecked SlashInfoKind = iota
	// SignatureInvalid: the proposer signature itself was invalid. Never
	// forwarded to the slasher.
	SignatureInvalid
	// SignatureValid: the proposer signature was checked and is valid; Header
	// may be handed to the slasher directly.
	SignatureValid
)

// NewSlashInfoNotChecked builds a SignatureNotChecked variant.
func NewSlashInfoNotChecked(header *blocks.SignedBeaconBlockHeader, err *BlockError) *BlockSlashInfo {
	return &BlockSlashInfo{Kind: SignatureNotChecked, Header: header, Err: err}
}

// NewSlashInfoInvalid builds a SignatureInvalid variant.
func NewSlashInfoInvalid(err *BlockError) *BlockSlashInfo {
	return &BlockSlashInfo{Kind: SignatureInvalid, Err: err}
}

// NewSlashInfoValid builds a SignatureValid variant.
func NewSlashInfoValid(header *blocks.SignedBeaconBlockHeader, err *BlockError) *BlockSlashInfo {
	return &BlockSlashInfo{Kind: SignatureValid, Header: header, Err: err}
}

// AsBlockError unwraps the carried error, the form every pipeline entry
// point ultimately returns to its caller.
func (s *BlockSlashInfo) AsBlockError() *BlockError { return s.Err }

// SlashInfoFromVerifiedBlock builds the slash-info for a failure surfaced by
// the execution-pending or commit stage. Both stages run strictly after
// signature verification, so the proposer signature is already known good
// and the result is always a SignatureValid variant, safe to forward to the
// slasher directly.
func SlashInfoFromVerifiedBlock(ro blocks.ROBlock, err *BlockError) *BlockSlashInfo {
	bodyRoot, herr := ro.Block().Block.BodyHashTreeRoot()
	if herr != nil {
		return nil
	}
	return NewSlashInfoValid(ro.Block().SigningHeader(bodyRoot), err)
}

// ReportToSlasher runs the slasher-integration policy: a
// SignatureNotChecked header gets a standalone proposer-signature recheck
// before being forwarded; SignatureValid is forwarded directly;
// SignatureInvalid is never forwarded.
func ReportToSlasher(ctx SlasherReportContext, info *BlockSlashInfo, slasher Slasher) error {
	if slasher == nil || info == nil {
		return nil
	}
	switch info.Kind {
	case SignatureInvalid:
		return nil
	case SignatureValid:
		return slasher.AcceptBlockHeader(ctx.Ctx, info.Header)
	case SignatureNotChecked:
		valid, err := ctx.RecheckProposerSignature(info.Header)
		if err != nil || !valid {
			return err
		}
		return slasher.AcceptBlockHeader(ctx.Ctx, info.Header)
	default:
		return nil
	}
}
