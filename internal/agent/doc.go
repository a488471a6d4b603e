// Пакет agent реализует цикл обработки документов.
//
// Агент в бесконечном цикле захватывает один документ с pending-работой
// под эксклюзивную блокировку, выполняет его действия в порядке очереди
// и сохраняет терминальный результат прохода. Несколько агентов
// конкурируют только через хранилище: ровно один получает каждый
// документ, остальные продолжают поиск без ожидания.
//
// # Классификация ошибок
//
// Каждая ошибка действия записывается на сам документ:
//
//   - операционная (ops) — ожидаемая проблема окружения или данных:
//     недоступный источник, превышение потолка размера, неразрешимое
//     действие. Документ уходит в failures для operator-retry.
//   - разработческая (dev) — неожиданная ошибка или паника действия:
//     сигнал бага. Эскалируется dev-алертом.
//   - abort — не ошибка: действие отказывается от результата, документ
//     возвращается в pending-пул нетронутым.
//
// После первой записанной ошибки оставшиеся pending-действия остаются
// на месте: оператор видит документ целиком с оставшейся работой.
//
// # Shutdown
//
// Отмена контекста наблюдается между документами и внутри backoff-пауз.
// Выполняющееся действие не прерывается: агент завершает текущий
// документ, снимает блокировку сохранением и выходит.
package agent
