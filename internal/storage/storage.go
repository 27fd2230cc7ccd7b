// Package storage содержит общие ошибки слоя хранения.
// Реализации находятся в пакетах repository (PostgreSQL) и memory.
package storage

import "errors"

var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists — нарушено ограничение уникальности.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNoCredit — у пользователя нет активной подписки с остатком писем,
	// либо корректировка увела бы счётчик ниже нуля.
	ErrNoCredit = errors.New("no letter credit available")
	// ErrConflict — запись находится в состоянии, не допускающем операцию.
	ErrConflict = errors.New("state conflict")
	// ErrEventProcessed — платёжное событие уже было обработано.
	ErrEventProcessed = errors.New("payment event already processed")
)
