// Package workflow — резолвер workflow: компиляция и валидация графа
// действий, отображение docspec → действия, выдача экземпляров действий.
//
// # Снимки
//
// Скомпилированный Workflow иммутабелен; агенты читают его copy-on-read.
// Refresh подменяет снимок целиком, когда поколение конфигурации
// в хранилище продвинулось. Невалидная конфигурация (цикл docspec,
// дубликат имени, отсутствующий производитель) фатальна для Refresh
// и оставляет активным прежний валидный снимок.
//
// # Граф
//
// Узлы графа — docspec (пары type:STATE), рёбра — input→output действий.
// Цикл обнаруживается сортировкой Кана на этапе компиляции. Синтетические
// trigger-docspec (префикс __TRIGGER__) освобождены от проверки
// производителя.
package workflow
