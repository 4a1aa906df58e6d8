package esplora

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ordex-network/ordex-daemon/pkg/explorer"
)

func (e *esplora) GetInscription(inscriptionID string) (*explorer.InscriptionLocation, error) {
	url := fmt.Sprintf("%s/v1/indexer/inscription/info/%s", e.ordURL, inscriptionID)
	status, resp, err := e.request("GET", url, "", nil)
	if err != nil {
		return nil, fmt.Errorf("error on retrieving inscription: %w", err)
	}
	if status != http.StatusOK {
		return nil, errors.New(resp)
	}

	var info inscriptionInfo
	if err := json.Unmarshal([]byte(resp), &info); err != nil {
		return nil, fmt.Errorf("error on retrieving inscription: %w", err)
	}
	if info.Code != 0 {
		return nil, errors.New(info.Msg)
	}

	return &explorer.InscriptionLocation{
		InscriptionID: info.Data.InscriptionID,
		Address:       info.Data.Address,
		ContentType:   info.Data.ContentType,
		Utxo:          info.Data.Utxo.toUtxo(),
	}, nil
}
