package server

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

var (
	registerOnce sync.Once
	registerErr  error
)

// registerValidators はGinのバインディングに独自の検証ルールを登録する。
// notblank は空白だけの文字列を拒否する。エラーのフィールド名にはJSONの名前を使う。
func registerValidators() error {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			registerErr = errors.New("バインディングのバリデーターがvalidator/v10ではありません")
			return
		}
		v.RegisterTagNameFunc(jsonFieldName)
		registerErr = v.RegisterValidation("notblank", validators.NotBlank)
	})
	return registerErr
}

// jsonFieldName は構造体フィールドのJSON名を返す。
func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	default:
		return name
	}
}

// bindJSON はリクエストボディを読み込んで検証する。
// 失敗した場合は400を返してfalseを返す。検証エラーは最初のフィールドを返す。
func bindJSON(c *gin.Context, req any) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("%sが'%s'の検証を満たしていません", fe.Field(), fe.Tag()),
			"field": fe.Field(),
		})
		return false
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
	return false
}
