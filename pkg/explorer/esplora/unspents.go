package esplora

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ordex-network/ordex-daemon/pkg/explorer"
)

func (e *esplora) GetUnspents(addr string) ([]explorer.Utxo, error) {
	unspents := make([]explorer.Utxo, 0)

	// The cursor can return the same outpoint on two adjacent pages when the
	// upstream set changes mid-walk, dedupe on the outpoint key.
	seen := make(map[string]struct{})
	err := e.fetchPages(
		fmt.Sprintf("%s/v1/indexer/address/%s/utxo-data", e.ordURL, addr),
		func(page []witnessUtxo) {
			for _, u := range page {
				utxo := u.toUtxo()
				if _, ok := seen[utxo.Key()]; ok {
					continue
				}
				seen[utxo.Key()] = struct{}{}
				unspents = append(unspents, utxo)
			}
		},
	)
	if err != nil {
		return nil, fmt.Errorf("error on retrieving utxos: %w", err)
	}

	return unspents, nil
}

func (e *esplora) GetInscriptionUnspents(addr string) ([]*explorer.InscriptionLocation, error) {
	locations := make([]*explorer.InscriptionLocation, 0)

	seen := make(map[string]struct{})
	err := e.fetchPages(
		fmt.Sprintf("%s/v1/indexer/address/%s/inscription-utxo-data", e.ordURL, addr),
		func(page []witnessUtxo) {
			for _, u := range page {
				utxo := u.toUtxo()
				if _, ok := seen[utxo.Key()]; ok {
					continue
				}
				seen[utxo.Key()] = struct{}{}
				for _, ins := range u.Inscriptions {
					locations = append(locations, &explorer.InscriptionLocation{
						InscriptionID: ins.InscriptionID,
						Address:       addr,
						ContentType:   ins.ContentType,
						Utxo:          utxo,
					})
				}
			}
		},
	)
	if err != nil {
		return nil, fmt.Errorf("error on retrieving inscription utxos: %w", err)
	}

	return locations, nil
}

// fetchPages walks a paginated indexer endpoint, concatenating pages until a
// short one signals the end of the list.
func (e *esplora) fetchPages(baseURL string, collect func([]witnessUtxo)) error {
	cursor := 0
	for {
		url := fmt.Sprintf("%s?cursor=%d&size=%d", baseURL, cursor, pageSize)
		status, resp, err := e.request("GET", url, "", nil)
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			return errors.New(resp)
		}

		var page indexerResponse
		if err := json.Unmarshal([]byte(resp), &page); err != nil {
			return err
		}
		if page.Code != 0 {
			return errors.New(page.Msg)
		}

		collect(page.Data.Utxo)

		if len(page.Data.Utxo) < pageSize {
			return nil
		}
		cursor += len(page.Data.Utxo)
	}
}
