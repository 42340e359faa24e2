// Пакет errors — конструкторы стандартных ошибок API Maltalist.
// Единый формат: {"error": {"code": "...", "message": "..."}}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors //nolint:revive // TODO: переименовать пакет errors, конфликт со stdlib

import (
	"encoding/json"
	"net/http"
)

// Машиночитаемые коды ошибок API.
const (
	CodeValidationError     = "VALIDATION_ERROR"
	CodeNotFound            = "NOT_FOUND"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeForbidden           = "FORBIDDEN"
	CodeConflict            = "CONFLICT"
	CodeFileTooLarge        = "FILE_TOO_LARGE"
	CodeExtensionNotAllowed = "EXTENSION_NOT_ALLOWED"
	CodeMimeTypeNotAllowed  = "MIME_TYPE_NOT_ALLOWED"
	CodeInvalidSignature    = "INVALID_SIGNATURE"
	CodeNotAValidImage      = "NOT_A_VALID_IMAGE"
	CodeInvalidFilename     = "INVALID_FILENAME"
	CodeInvalidPath         = "INVALID_PATH"
	CodeStorageFailure      = "STORAGE_FAILURE"
	CodeInternalError       = "INTERNAL_ERROR"
)

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// errorDetail — детали ошибки.
type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError записывает ответ ошибки в стандартном формате API.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// --- Конструкторы для типичных ошибок ---

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// NotFound — 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// Unauthorized — 401 требуется аутентификация.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

// Forbidden — 403 недостаточно прав.
func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, CodeForbidden, message)
}

// Conflict — 409 конфликт с текущим состоянием ресурса.
func Conflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeConflict, message)
}

// FileTooLarge — 413 файл превышает лимит или пуст.
func FileTooLarge(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusRequestEntityTooLarge, CodeFileTooLarge, message)
}

// ExtensionNotAllowed — 400 расширение файла вне списка разрешённых.
func ExtensionNotAllowed(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeExtensionNotAllowed, message)
}

// MimeTypeNotAllowed — 400 заявленный MIME-тип вне списка разрешённых.
func MimeTypeNotAllowed(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeMimeTypeNotAllowed, message)
}

// InvalidSignature — 400 магические байты не соответствуют картинке.
func InvalidSignature(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeInvalidSignature, message)
}

// NotAValidImage — 400 содержимое не декодируется как картинка.
func NotAValidImage(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeNotAValidImage, message)
}

// InvalidFilename — 400 имя файла содержит разделители пути или "..".
func InvalidFilename(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeInvalidFilename, message)
}

// InvalidPath — 400 путь выходит за пределы директории сущности.
func InvalidPath(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeInvalidPath, message)
}

// StorageFailure — 500 ошибка файлового хранилища.
func StorageFailure(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeStorageFailure, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
