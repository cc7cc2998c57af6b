// Package reward определяет интерфейс транспорта выплат и его реализации.
// Ядро системы не знает механику расчётов в сети: оно передаёт адрес и
// сумму и получает ссылку на транзакцию либо ошибку транспорта.
package reward

import (
	"context"
	"fmt"
)

// Receipt — результат успешной выплаты
type Receipt struct {
	TxRef    string
	BlockRef string
}

// Transport выполняет выплату награды на адрес кошелька.
// Вызов может блокироваться на заметное время, поэтому вызывающая
// сторона не должна держать блокировки сессии во время Send.
type Transport interface {
	Send(ctx context.Context, address string, amount int64) (*Receipt, error)
}

// TransportError — ошибка внешнего транспорта выплат.
// Retryable подсказывает, имеет ли смысл повторная попытка.
type TransportError struct {
	Code      string
	Message   string
	Retryable bool
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("reward transport error [%s]: %s", e.Code, e.Message)
}
