package telegram

import "sync"

// noticeLog помнит отправителей, которым уже отправили уведомление об отказе.
// Живёт один запуск воркера.
type noticeLog struct {
	seen sync.Map // senderID -> struct{}
}

// first возвращает true только при первом обращении для senderID.
func (n *noticeLog) first(senderID int64) bool {
	_, loaded := n.seen.LoadOrStore(senderID, struct{}{})
	return !loaded
}

func (n *noticeLog) reset() {
	n.seen.Clear()
}
