package esplora

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// tooLongMempoolChain is the node rejection raised when an unconfirmed
// ancestor chain is at capacity. It resolves itself as blocks are mined, so
// broadcasting retries on this one rejection until it goes through. Any other
// rejection is final.
const tooLongMempoolChain = "too-long-mempool-chain"

// broadcastRetryDelay is the pause between broadcast attempts. A variable so
// tests can shrink it.
var broadcastRetryDelay = 3 * time.Second

func (e *esplora) GetFeeRate() (uint64, error) {
	url := fmt.Sprintf("%s/v1/fees/recommended", e.apiURL)
	status, resp, err := e.request("GET", url, "", nil)
	if err != nil {
		return 0, err
	}
	if status != http.StatusOK {
		return 0, errors.New(resp)
	}

	var fees recommendedFees
	if err := json.Unmarshal([]byte(resp), &fees); err != nil {
		return 0, err
	}

	return fees.HalfHourFee, nil
}

func (e *esplora) BroadcastTransaction(txHex string) (string, error) {
	url := fmt.Sprintf("%s/tx", e.apiURL)
	headers := map[string]string{
		"Content-Type": "text/plain",
	}

	for {
		status, resp, err := e.request("POST", url, txHex, headers)
		if err != nil {
			return "", err
		}
		if status == http.StatusOK {
			return strings.TrimSpace(resp), nil
		}
		if !strings.Contains(resp, tooLongMempoolChain) {
			return "", errors.New(resp)
		}

		time.Sleep(broadcastRetryDelay)
	}
}
