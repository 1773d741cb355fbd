package types

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

type Validater interface {
	Validate() map[string]string
}

func Validate(v Validater) map[string]string {
	return v.Validate()
}

type TrainParams struct {
	ChannelURL  string `json:"channel_url" validate:"required"`
	CustomerKey string `json:"customer_key" validate:"required"`
}

type TrainVideoParams struct {
	ChannelURL  string `json:"channel_url" validate:"required"`
	VideoURL    string `json:"video_url" validate:"required"`
	CustomerKey string `json:"customer_key" validate:"required"`
}

type QueryParams struct {
	QueryPhrase string `json:"query_phrase" validate:"required"`
	ChannelURL  string `json:"channel_url" validate:"required"`
	CustomerKey string `json:"customer_key" validate:"required"`
}

type ChatParams struct {
	Question string `json:"question" validate:"required"`
	VideoID  string `json:"video_id" validate:"required"`
}

func (params *TrainParams) Validate() map[string]string {
	return validateStruct(params)
}

func (params *TrainVideoParams) Validate() map[string]string {
	return validateStruct(params)
}

func (params *QueryParams) Validate() map[string]string {
	return validateStruct(params)
}

func (params *ChatParams) Validate() map[string]string {
	return validateStruct(params)
}

func validateStruct(s any) map[string]string {
	validate := validator.New()
	if err := validate.Struct(s); err != nil {
		errs := err.(validator.ValidationErrors)
		errors := make(map[string]string)
		for _, e := range errs {
			errors[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
		}
		return errors
	}
	return nil
}
