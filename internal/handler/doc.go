// Package handler 按领域划分的 HTTP Handler：
//
//   - admin  会员、套餐、统计与操作日志
//   - auth   管理员登录与两步验证
//   - ledger 充值与消费
//   - upload 图片上传
//
// 本文件使 `swag init --dir ./internal/handler` 能把该目录识别为 Go 包。
package handler
