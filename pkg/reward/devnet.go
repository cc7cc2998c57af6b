package reward

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/google/uuid"
)

// DevnetTransport — транспорт для разработки и стендов без реальной сети.
// Генерирует уникальные ссылки на транзакции и нумерует "блоки" локально.
type DevnetTransport struct {
	blockSeq int64
}

// NewDevnetTransport создает новый devnet-транспорт
func NewDevnetTransport() *DevnetTransport {
	return &DevnetTransport{}
}

// Send имитирует выплату: моментально возвращает квитанцию
func (t *DevnetTransport) Send(ctx context.Context, address string, amount int64) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, &TransportError{Code: "cancelled", Message: err.Error(), Retryable: true}
	}
	if address == "" {
		return nil, &TransportError{Code: "bad_address", Message: "empty wallet address", Retryable: false}
	}
	if amount <= 0 {
		return nil, &TransportError{Code: "bad_amount", Message: fmt.Sprintf("non-positive amount %d", amount), Retryable: false}
	}

	receipt := &Receipt{
		TxRef:    "devnet-" + uuid.New().String(),
		BlockRef: fmt.Sprintf("block-%d", atomic.AddInt64(&t.blockSeq, 1)),
	}
	log.Printf("[DevnetTransport] Выплата %d на адрес %s: tx=%s", amount, address, receipt.TxRef)
	return receipt, nil
}
