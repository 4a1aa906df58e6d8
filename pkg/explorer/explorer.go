package explorer

import "fmt"

// Service is the abstraction for any kind of service intended to act as a
// gateway to the Bitcoin chain: resolving inscription locations, listing
// wallet unspents, estimating fees and broadcasting raw transactions.
type Service interface {
	// GetInscription returns the current location of the inscription
	// identified by its id.
	GetInscription(inscriptionID string) (*InscriptionLocation, error)
	// GetUnspents returns the full list of plain BTC unspents owned by the
	// given address, in the order returned by the upstream.
	GetUnspents(addr string) ([]Utxo, error)
	// GetInscriptionUnspents returns the full list of inscription-bearing
	// unspents owned by the given address. No content-type filtering is
	// applied, that's up to the caller.
	GetInscriptionUnspents(addr string) ([]*InscriptionLocation, error)
	// GetFeeRate returns the recommended fee rate in sat/vByte.
	GetFeeRate() (uint64, error)
	// BroadcastTransaction publishes the given raw transaction in hex format
	// and returns its txid.
	BroadcastTransaction(txHex string) (string, error)
}

// Utxo is an immutable snapshot of an unspent transaction output.
type Utxo struct {
	Txid   string
	Vout   uint32
	Value  uint64
	Script []byte
}

// Key returns the outpoint in txid:vout format.
func (u Utxo) Key() string {
	return fmt.Sprintf("%s:%d", u.Txid, u.Vout)
}

// InscriptionLocation binds an inscription to the utxo and address currently
// controlling it. It is fetched on demand and never cached across a trust
// boundary, since ownership can change on-chain at any time.
type InscriptionLocation struct {
	InscriptionID string
	Address       string
	ContentType   string
	Utxo          Utxo
}
