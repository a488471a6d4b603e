// Пакет status реализует heartbeat агентов.
//
// Каждый агент периодически записывает свой статус (RUNNING или IDLE,
// текущая задача, хост) в таблицу agent_status. Свежесть updated_at
// служит heartbeat'ом: запись, не обновлявшаяся дольше порога,
// операторские инструменты показывают как STALE.
package status
