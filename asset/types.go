// Package asset implements the AssetCache and TokenDiscoveryService
// components: mint metadata resolution and NFT/token classification.
package asset

// Kind classifies an AssetRecord.
type Kind string

const (
	KindNative Kind = "native"
	KindToken  Kind = "token"
	KindNFT    Kind = "nft"
)

// Metadata is the descriptive payload of an AssetRecord.
type Metadata struct {
	Name     string
	Symbol   string
	Decimals uint8
	LogoURI  string
	Verified bool
	Tags     []string
	// Collection and Attributes are copied from the DAS metadata's
	// grouping/attributes payload when it carries one, for any Kind; they
	// are empty otherwise.
	Collection string
	Attributes map[string]string
}

// Record is a resolved asset: a mint plus its classification and metadata.
// A Record classified as nft by decimals=0 and supply<=1 has those values;
// one classified as nft by a master edition alone keeps whatever Decimals
// and Supply its metadata reported.
type Record struct {
	Mint     string
	Kind     Kind
	Metadata Metadata
	Supply   *uint64
}

// isNFT reports whether r is classified as an NFT. Cache.IsNFT uses it to
// satisfy balance.AssetClassifier, so a *Cache can be handed directly to a
// BalanceDiscoveryService without that package importing asset.
func (r Record) isNFT() bool {
	return r.Kind == KindNFT
}
